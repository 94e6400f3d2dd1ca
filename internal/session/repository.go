package session

import (
	"context"
	"time"
)

// Store keeps pending logins in an external key value store. Implementations
// return serviceerr.ErrNotFound for missing or expired records.
type Store interface {
	// Put stores the record under the id and expires it after ttl.
	Put(ctx context.Context, id string, record Record, ttl time.Duration) error
	// GetAll reads the record without consuming it.
	GetAll(ctx context.Context, id string) (Record, error)
	// Take reads and deletes the record atomically, so a record is handed
	// out at most once.
	Take(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}
