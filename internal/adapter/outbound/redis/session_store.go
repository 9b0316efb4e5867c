// Package redis provides a Redis-backed session store so several server
// instances can share sessions.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krug-dev/krug-mcp/internal/domain/session"
)

// DefaultQueryTimeout bounds each Redis round trip.
const DefaultQueryTimeout = 5 * time.Second

// SessionStore implements session.Store on top of Redis string keys.
// TTLs are enforced by Redis itself via SET ... PX.
type SessionStore struct {
	client       *redis.Client
	prefix       string
	queryTimeout time.Duration
	ownsClient   bool
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithQueryTimeout sets the per-operation timeout. Default: DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *SessionStore) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// WithPrefix namespaces every key, e.g. "krug" turns "mcp_session:x" into
// "krug:mcp_session:x". Default: no prefix.
func WithPrefix(p string) Option {
	return func(s *SessionStore) { s.prefix = p }
}

// WithOwnedClient makes Close also close the redis.Client.
func WithOwnedClient() Option {
	return func(s *SessionStore) { s.ownsClient = true }
}

// NewSessionStore wraps client. Unless WithOwnedClient is given, the caller
// owns the client lifecycle.
func NewSessionStore(client *redis.Client, opts ...Option) *SessionStore {
	s := &SessionStore{
		client:       client,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.queryTimeout)
}

func (s *SessionStore) prefixKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get returns the record under key, or session.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, key string) (*session.Session, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	data, err := s.client.Get(qctx, s.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return session.Unmarshal(data)
}

// Set writes sess under key with the given TTL.
func (s *SessionStore) Set(ctx context.Context, key string, sess *session.Session, ttl time.Duration) error {
	data, err := session.Marshal(sess)
	if err != nil {
		return err
	}

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if err := s.client.Set(qctx, s.prefixKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *SessionStore) Ping(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return s.client.Ping(qctx).Err()
}

// Close closes the client if the store owns it.
func (s *SessionStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
