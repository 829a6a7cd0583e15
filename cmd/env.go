package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/resilience"
	"github.com/fleetmarket/vinfill/internal/store"
	"github.com/fleetmarket/vinfill/pkg/epa"
	"github.com/fleetmarket/vinfill/pkg/nhtsa"
)

// decodeEnv holds what the decode, batch and serve commands share.
type decodeEnv struct {
	Store   store.Store // nil when store.driver is "none"
	Decoder *decode.Service
}

// Close releases resources held by the environment.
func (e *decodeEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "none":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initDecoder validates config for mode, opens and migrates the store,
// and wires the provider clients into a decode service. Callers should
// defer env.Close().
func initDecoder(ctx context.Context, mode string) (*decodeEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &decodeEnv{Store: st}

	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			env.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	backoff := resilience.DefaultBackoff()
	if cfg.NHTSA.RetryAttempts > 0 {
		backoff.Attempts = cfg.NHTSA.RetryAttempts
	}
	nhtsaClient := nhtsa.NewClient(
		nhtsa.WithBaseURL(cfg.NHTSA.BaseURL),
		nhtsa.WithRateLimit(cfg.NHTSA.RateLimit),
		nhtsa.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.NHTSA.TimeoutSecs) * time.Second}),
		nhtsa.WithBackoff(backoff),
		nhtsa.WithBreaker(resilience.NewBreaker("nhtsa", cfg.NHTSA.BreakerThreshold,
			time.Duration(cfg.NHTSA.BreakerCooldownSecs)*time.Second)),
	)

	opts := []decode.Option{decode.WithCacheSize(cfg.Cache.Size)}
	if cfg.EPA.Enabled {
		opts = append(opts, decode.WithEPA(epa.NewClient(
			epa.WithBaseURL(cfg.EPA.BaseURL),
			epa.WithRateLimit(cfg.EPA.RateLimit),
			epa.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.EPA.TimeoutSecs) * time.Second}),
		)))
	}
	if st != nil {
		opts = append(opts, decode.WithStore(st, cfg.Cache.TTL()))
	}

	svc, err := decode.NewService(nhtsaClient, opts...)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Decoder = svc

	zap.L().Debug("decoder ready",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("epa", cfg.EPA.Enabled),
		zap.Int("cache_size", cfg.Cache.Size),
	)
	return env, nil
}
