package session

import (
	"context"
	"errors"
	"time"
)

// Store is a shared key/value cache of session records with per-write TTLs.
// Expiry is owned entirely by the store; callers never delete records.
// Implementations: in-memory, Redis, SQLite.
type Store interface {
	// Get returns the record stored under key.
	// Returns ErrNotFound if the key is absent or its TTL has elapsed.
	Get(ctx context.Context, key string) (*Session, error)

	// Set writes the record under key, replacing any previous value and
	// resetting its TTL.
	Set(ctx context.Context, key string, sess *Session, ttl time.Duration) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// ErrNotFound is returned when a session doesn't exist or has expired.
var ErrNotFound = errors.New("session not found")
