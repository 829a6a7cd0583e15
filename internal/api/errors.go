package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/draft"
	"github.com/fleetmarket/vinfill/internal/reconcile"
	"github.com/fleetmarket/vinfill/internal/resilience"
	"github.com/fleetmarket/vinfill/internal/wizard"
)

type errorBody struct {
	Error    string            `json:"error"`
	Problems map[string]string `json:"problems,omitempty"`
}

// statusFor maps domain errors to HTTP status codes. Unrecognized errors
// get fallback.
func statusFor(err error, fallback int) int {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case eris.Is(err, draft.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, decode.ErrInvalidVIN), eris.Is(err, wizard.ErrStepOutOfRange):
		return http.StatusBadRequest
	case eris.Is(err, reconcile.ErrUnknownField), eris.Is(err, reconcile.ErrInvalidValue),
		eris.Is(err, decode.ErrNotDecoded):
		return http.StatusUnprocessableEntity
	case eris.Is(err, wizard.ErrStepUnreachable), eris.Is(err, draft.ErrStaleDecode):
		return http.StatusConflict
	case eris.Is(err, resilience.ErrBreakerOpen):
		return http.StatusServiceUnavailable
	case eris.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return fallback
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := statusFor(err, fallback)
	body := errorBody{Error: err.Error()}
	var verr *wizard.ValidationError
	if errors.As(err, &verr) {
		body.Problems = verr.Problems
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

const maxBodyBytes = 1 << 20

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return eris.Wrap(err, "api: invalid request body")
	}
	return nil
}
