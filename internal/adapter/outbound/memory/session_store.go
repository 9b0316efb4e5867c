// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/krug-dev/krug-mcp/internal/domain/session"
)

// DefaultCleanupInterval is how often expired entries are swept.
const DefaultCleanupInterval = 1 * time.Minute

type entry struct {
	data      []byte
	expiresAt time.Time
}

// SessionStore implements session.Store with an in-process map.
// Thread-safe for concurrent access. Suited to single-instance deployments
// and tests; use the Redis store when several instances share sessions.
//
// Records are kept encoded so callers never share memory with the store.
// Expired entries are invisible to Get immediately and are removed by the
// store's own sweep goroutine once StartCleanup is called.
type SessionStore struct {
	entries         map[string]entry
	mu              sync.RWMutex
	now             func() time.Time
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithCleanupInterval sets the sweep interval. Default: DefaultCleanupInterval.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *SessionStore) {
		if d > 0 {
			s.cleanupInterval = d
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore(opts ...Option) *SessionStore {
	s := &SessionStore{
		entries:         make(map[string]entry),
		now:             time.Now,
		stopChan:        make(chan struct{}),
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCleanup starts the background sweep goroutine.
// Call Stop (or Close) to stop it.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

// cleanup removes all expired entries.
func (s *SessionStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		slog.Debug("cleaned expired sessions", "count", cleaned)
	}
}

// Stop stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Get returns the record under key.
// Returns session.ErrNotFound if the key is absent or expired.
func (s *SessionStore) Get(ctx context.Context, key string) (*session.Session, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		return nil, session.ErrNotFound
	}
	return session.Unmarshal(e.data)
}

// Set stores sess under key with the given TTL.
func (s *SessionStore) Set(ctx context.Context, key string, sess *session.Session, ttl time.Duration) error {
	data, err := session.Marshal(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{data: data, expiresAt: s.now().Add(ttl)}
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *SessionStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the sweep goroutine.
func (s *SessionStore) Close() error {
	s.Stop()
	return nil
}

// Size returns the number of entries held, including expired entries not
// yet swept.
func (s *SessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
