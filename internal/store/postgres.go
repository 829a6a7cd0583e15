package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// pool is the slice of pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	getDecodeSQL = `SELECT vin, payload, sources, fetched_at, expires_at FROM vin_decodes
		 WHERE vin = $1 AND expires_at > now()`
	putDecodeSQL = `INSERT INTO vin_decodes (id, vin, payload, sources, fetched_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (vin) DO UPDATE SET payload = EXCLUDED.payload, sources = EXCLUDED.sources,
		 fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`
	deleteExpiredSQL = `DELETE FROM vin_decodes WHERE expires_at <= now()`
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_decode":     getDecodeSQL,
	"put_decode":     putDecodeSQL,
	"delete_expired": deleteExpiredSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Statements reference vin_decodes, so they can only be prepared once
	// Migrate has run; a failure here leaves pgx to prepare lazily.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				zap.L().Debug("postgres: skipping statement preparation", zap.String("statement", name), zap.Error(err))
				return nil
			}
		}
		return nil
	}

	p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: p, closeFn: p.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vin_decodes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vin        TEXT NOT NULL UNIQUE,
	payload    JSONB NOT NULL,
	sources    TEXT[] NOT NULL DEFAULT '{}',
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vin_decodes_expires_at ON vin_decodes(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetDecode(ctx context.Context, vin string) (*CachedDecode, error) {
	var cd CachedDecode
	var payload []byte
	err := s.pool.QueryRow(ctx, getDecodeSQL, vin).
		Scan(&cd.VIN, &payload, &cd.Sources, &cd.FetchedAt, &cd.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get decode")
	}
	cd.Payload = payload
	return &cd, nil
}

func (s *PostgresStore) PutDecode(ctx context.Context, vin string, payload []byte, sources []string, ttl time.Duration) error {
	if sources == nil {
		sources = []string{}
	}
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, putDecodeSQL,
		uuid.New().String(), vin, payload, sources, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: put decode")
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, deleteExpiredSQL)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(tag.RowsAffected()), nil
}
