// Package decode turns a VIN into the provider payload the reconciliation
// engine consumes, consulting an in-memory cache, the persistent store,
// NHTSA vPIC and the EPA in that order.
package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/enum"
	"github.com/fleetmarket/vinfill/internal/payload"
	"github.com/fleetmarket/vinfill/internal/store"
	"github.com/fleetmarket/vinfill/pkg/epa"
	"github.com/fleetmarket/vinfill/pkg/nhtsa"
)

// Where a Result came from.
const (
	OriginMemory   = "memory"
	OriginStore    = "store"
	OriginProvider = "provider"
)

// ErrNotDecoded is returned when vPIC recognizes nothing about the VIN.
var ErrNotDecoded = eris.New("decode: vin not recognized")

// Result is one decoded VIN.
type Result struct {
	VIN      string
	Payload  payload.Payload
	Warnings []string
	Origin   string
}

// Service decodes VINs. It is safe for concurrent use.
type Service struct {
	nhtsa nhtsa.Client
	epa   epa.Client
	store store.Store
	ttl   time.Duration
	cache *lru.Cache[string, payload.Payload]
}

// Option configures a Service.
type Option func(*Service) error

// WithEPA enables fuel economy lookups.
func WithEPA(c epa.Client) Option {
	return func(s *Service) error {
		s.epa = c
		return nil
	}
}

// WithStore persists provider answers for ttl.
func WithStore(st store.Store, ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl <= 0 {
			return eris.Errorf("decode: store ttl must be positive, got %s", ttl)
		}
		s.store = st
		s.ttl = ttl
		return nil
	}
}

// WithCacheSize sets the in-memory cache capacity. Zero disables it.
func WithCacheSize(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			s.cache = nil
			return nil
		}
		c, err := lru.New[string, payload.Payload](n)
		if err != nil {
			return eris.Wrap(err, "decode: create cache")
		}
		s.cache = c
		return nil
	}
}

// NewService builds a Service around an NHTSA client.
func NewService(n nhtsa.Client, opts ...Option) (*Service, error) {
	if n == nil {
		return nil, eris.New("decode: nhtsa client is required")
	}
	s := &Service{nhtsa: n}
	for _, opt := range append([]Option{WithCacheSize(1024)}, opts...) {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Decode returns the provider payload for vin.
func (s *Service) Decode(ctx context.Context, vin string) (Result, error) {
	vin = NormalizeVIN(vin)
	if err := ValidateVIN(vin); err != nil {
		return Result{}, err
	}
	res := Result{VIN: vin, Warnings: vinWarnings(vin)}

	if s.cache != nil {
		if p, ok := s.cache.Get(vin); ok {
			res.Payload, res.Origin = p, OriginMemory
			return res, nil
		}
	}

	if p, ok := s.fromStore(ctx, vin); ok {
		s.remember(vin, p)
		res.Payload, res.Origin = p, OriginStore
		return res, nil
	}

	p, sources, warnings, err := s.fromProviders(ctx, vin)
	if err != nil {
		return Result{}, err
	}
	res.Payload, res.Origin = p, OriginProvider
	res.Warnings = append(res.Warnings, warnings...)

	s.remember(vin, p)
	if s.store != nil {
		if err := s.store.PutDecode(ctx, vin, p.Raw(), sources, s.ttl); err != nil {
			zap.L().Warn("decode: cache write failed", zap.String("vin", vin), zap.Error(err))
		}
	}
	return res, nil
}

func (s *Service) remember(vin string, p payload.Payload) {
	if s.cache != nil {
		s.cache.Add(vin, p)
	}
}

// fromStore treats store failures as misses so a database outage only
// costs a provider round trip.
func (s *Service) fromStore(ctx context.Context, vin string) (payload.Payload, bool) {
	if s.store == nil {
		return payload.Payload{}, false
	}
	cd, err := s.store.GetDecode(ctx, vin)
	if err != nil {
		zap.L().Warn("decode: cache read failed", zap.String("vin", vin), zap.Error(err))
		return payload.Payload{}, false
	}
	if cd == nil {
		return payload.Payload{}, false
	}
	p, err := payload.FromJSON(cd.Payload)
	if err != nil {
		zap.L().Warn("decode: discarding corrupt cache entry", zap.String("vin", vin), zap.Error(err))
		return payload.Payload{}, false
	}
	return p, true
}

func (s *Service) fromProviders(ctx context.Context, vin string) (payload.Payload, []string, []string, error) {
	d, err := s.nhtsa.DecodeVIN(ctx, vin)
	if err != nil {
		return payload.Payload{}, nil, nil, eris.Wrap(err, "decode: nhtsa")
	}
	if d.Make == "" && d.Model == "" && d.ModelYear == "" {
		return payload.Payload{}, nil, nil, eris.Wrapf(ErrNotDecoded, "%s: %s", vin, d.ErrorText)
	}

	var warnings []string
	if confidence(d) != enum.ConfidenceHigh && d.ErrorText != "" {
		warnings = append(warnings, "nhtsa: "+d.ErrorText)
	}

	econ := s.economy(ctx, d)

	raw := buildRaw(d, econ)
	p, err := payload.FromMap(raw)
	if err != nil {
		return payload.Payload{}, nil, nil, err
	}
	zap.L().Debug("decode: providers answered",
		zap.String("vin", vin),
		zap.Int("keys", p.Len()),
		zap.Bool("epa", econ != nil),
	)
	return p, p.DataSources(), warnings, nil
}

// economy is best effort: EPA rates light vehicles only, and its outages
// must not block a decode.
func (s *Service) economy(ctx context.Context, d *nhtsa.Decoded) *epa.Economy {
	if s.epa == nil {
		return nil
	}
	year, ok := parseNumber(d.ModelYear)
	if !ok || d.Make == "" || d.Model == "" {
		return nil
	}
	econ, err := s.epa.Lookup(ctx, int(year), normalizeMake(d.Make), d.Model)
	if err != nil {
		zap.L().Warn("decode: epa lookup failed",
			zap.String("vin", d.VIN),
			zap.Error(err),
		)
		return nil
	}
	return econ
}

func vinWarnings(vin string) []string {
	if want, ok := CheckDigit(vin); !ok {
		return []string{fmt.Sprintf("check digit mismatch: position 9 is %q, expected %q", vin[8], want)}
	}
	return nil
}

// MarshalJSON renders the payload inline for CLI and API output.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		VIN      string          `json:"vin"`
		Payload  json.RawMessage `json:"payload"`
		Warnings []string        `json:"warnings,omitempty"`
		Origin   string          `json:"origin"`
	}{r.VIN, r.Payload.Raw(), r.Warnings, r.Origin})
}
