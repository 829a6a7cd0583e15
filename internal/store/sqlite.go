package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// sqlitePragmas run on every connection the pool opens.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

func sqliteDSN(path string) string {
	dsn := "file:" + path
	for i, p := range sqlitePragmas {
		if i == 0 {
			dsn += "?"
		} else {
			dsn += "&"
		}
		dsn += "_pragma=" + p
	}
	return dsn
}

// NewSQLite opens the SQLite database at path in WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "sqlite: open")
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Times are unix milliseconds so expiry compares numerically.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vin_decodes (
	id         TEXT PRIMARY KEY,
	vin        TEXT NOT NULL UNIQUE,
	payload    TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '[]',
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vin_decodes_expires_at ON vin_decodes(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetDecode(ctx context.Context, vin string) (*CachedDecode, error) {
	var (
		cd                   CachedDecode
		payload, sources     string
		fetchedMs, expiresMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT vin, payload, sources, fetched_at, expires_at FROM vin_decodes
		 WHERE vin = ? AND expires_at > ?`,
		vin, s.now().UnixMilli(),
	).Scan(&cd.VIN, &payload, &sources, &fetchedMs, &expiresMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get decode")
	}
	if err := json.Unmarshal([]byte(sources), &cd.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources")
	}
	cd.Payload = json.RawMessage(payload)
	cd.FetchedAt = time.UnixMilli(fetchedMs).UTC()
	cd.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	return &cd, nil
}

func (s *SQLiteStore) PutDecode(ctx context.Context, vin string, payload []byte, sources []string, ttl time.Duration) error {
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vin_decodes (id, vin, payload, sources, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (vin) DO UPDATE SET payload = excluded.payload, sources = excluded.sources,
		 fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		uuid.New().String(), vin, string(payload), string(sourcesJSON), now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: put decode")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vin_decodes WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}
