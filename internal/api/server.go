// Package api exposes listing drafts and VIN decoding over HTTP.
package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/draft"
	"github.com/fleetmarket/vinfill/internal/form"
	"github.com/fleetmarket/vinfill/internal/reconcile"
	"github.com/fleetmarket/vinfill/internal/wizard"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handlers' dependencies.
type Server struct {
	drafts  *draft.Manager
	decoder draft.Decoder
	engine  *reconcile.Engine
	pinger  Pinger
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithPinger adds a dependency check to /health.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// New creates a Server.
func New(drafts *draft.Manager, decoder draft.Decoder, opts ...Option) *Server {
	s := &Server{
		drafts:  drafts,
		decoder: decoder,
		engine:  reconcile.NewEngine(),
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/fields", s.listFields)
		r.Get("/decode/{vin}", s.previewDecode)

		r.Post("/drafts", s.createDraft)
		r.Route("/drafts/{id}", func(r chi.Router) {
			r.Get("/", s.getDraft)
			r.Delete("/", s.deleteDraft)
			r.Put("/vin", s.setVIN)
			r.Patch("/fields", s.editFields)
			r.Post("/step", s.navigate)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fieldInfo struct {
	Name string   `json:"name"`
	Keys []string `json:"keys"`
}

func (s *Server) listFields(w http.ResponseWriter, _ *http.Request) {
	specs := reconcile.DecodeFields()
	out := make([]fieldInfo, len(specs))
	for i, f := range specs {
		out[i] = fieldInfo{Name: f.Name, Keys: f.Keys}
	}
	writeJSON(w, http.StatusOK, out)
}

// previewResponse is a stateless decode reconciled into an empty form.
type previewResponse struct {
	Decode  decode.Result         `json:"decode"`
	Fields  map[string]form.Value `json:"fields"`
	Outcome reconcile.Outcome     `json:"outcome"`
}

func (s *Server) previewDecode(w http.ResponseWriter, r *http.Request) {
	res, err := s.decoder.Decode(r.Context(), chi.URLParam(r, "vin"))
	if err != nil {
		writeError(w, r, err, http.StatusBadGateway)
		return
	}
	table := form.New()
	out := s.engine.Apply(res.Payload, table, wizard.StepVehicle)
	writeJSON(w, http.StatusOK, previewResponse{Decode: res, Fields: table.Snapshot(), Outcome: out})
}

func (s *Server) createDraft(w http.ResponseWriter, _ *http.Request) {
	d := s.drafts.Create()
	writeJSON(w, http.StatusCreated, d.State())
}

func (s *Server) draft(w http.ResponseWriter, r *http.Request) (*draft.Draft, bool) {
	d, err := s.drafts.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return nil, false
	}
	return d, true
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.draft(w, r); ok {
		writeJSON(w, http.StatusOK, d.State())
	}
}

func (s *Server) deleteDraft(w http.ResponseWriter, r *http.Request) {
	s.drafts.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type vinRequest struct {
	VIN string `json:"vin"`
}

// setVIN stores the VIN and, when it is a new valid VIN, decodes it in
// the background. ?sync=true decodes inline and reports the outcome.
func (s *Server) setVIN(w http.ResponseWriter, r *http.Request) {
	d, ok := s.draft(w, r)
	if !ok {
		return
	}
	var req vinRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if !d.SetVIN(req.VIN) {
		writeJSON(w, http.StatusOK, d.State())
		return
	}

	if r.URL.Query().Get("sync") == "true" {
		out, err := s.drafts.Enrich(r.Context(), d)
		if err != nil {
			writeError(w, r, err, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Draft   draft.View        `json:"draft"`
			Outcome reconcile.Outcome `json:"outcome"`
		}{d.State(), out})
		return
	}

	if _, err := s.drafts.EnrichAsync(d); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, d.State())
}

type fieldsRequest struct {
	Fields map[string]any `json:"fields"`
}

// editFields applies dealer edits in field-name order and stops at the
// first rejected value.
func (s *Server) editFields(w http.ResponseWriter, r *http.Request) {
	d, ok := s.draft(w, r)
	if !ok {
		return
	}
	var req fieldsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	names := make([]string, 0, len(req.Fields))
	for name := range req.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.EditField(name, req.Fields[name]); err != nil {
			writeError(w, r, err, http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, http.StatusOK, d.State())
}

type stepRequest struct {
	Action string `json:"action"`
	Step   int    `json:"step"`
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	d, ok := s.draft(w, r)
	if !ok {
		return
	}
	var req stepRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "next":
		err = d.Next()
	case "back":
		d.Back()
	case "goto":
		err = d.Goto(wizard.Step(req.Step))
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "action must be next, back or goto"})
		return
	}
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, d.State())
}
