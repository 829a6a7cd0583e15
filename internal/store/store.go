// Package store persists provider decode responses so repeat VINs skip
// NHTSA and EPA. Listing drafts are never stored here.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// CachedDecode is a stored decode payload.
type CachedDecode struct {
	VIN       string          `json:"vin"`
	Payload   json.RawMessage `json:"payload"`
	Sources   []string        `json:"sources"`
	FetchedAt time.Time       `json:"fetched_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Store defines decode cache persistence.
type Store interface {
	// GetDecode returns nil, nil on a miss or an expired entry.
	GetDecode(ctx context.Context, vin string) (*CachedDecode, error)
	PutDecode(ctx context.Context, vin string, payload []byte, sources []string, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
