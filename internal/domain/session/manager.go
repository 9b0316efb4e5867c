package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the sliding lifetime of an active session.
const DefaultTTL = 30 * time.Minute

// DefaultGraceTTL is how long a destroyed session stays readable.
const DefaultGraceTTL = 1 * time.Minute

// Config holds session manager configuration.
type Config struct {
	// TTL is the sliding expiration applied on every write. Default: 30 minutes.
	TTL time.Duration
	// GraceTTL is the fixed expiration applied by Destroy. Default: 1 minute.
	GraceTTL time.Duration
	// NewID generates session ids. Default: random UUIDv4.
	NewID func() string
	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Manager resolves, updates and soft-deletes sessions.
//
// No lock is held across store reads and writes. Concurrent requests for
// the same id may race and lose request_count increments; the counter is
// advisory only.
type Manager struct {
	store    Store
	ttl      time.Duration
	graceTTL time.Duration
	newID    func() string
	now      func() time.Time
}

// NewManager creates a Manager over store.
func NewManager(store Store, cfg Config) *Manager {
	m := &Manager{
		store:    store,
		ttl:      cfg.TTL,
		graceTTL: cfg.GraceTTL,
		newID:    cfg.NewID,
		now:      cfg.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.graceTTL <= 0 {
		m.graceTTL = DefaultGraceTTL
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// TTL returns the sliding TTL applied to active sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// GraceTTL returns the TTL applied to destroyed sessions.
func (m *Manager) GraceTTL() time.Duration { return m.graceTTL }

// Resolve loads the session for id, or creates a new one under a freshly
// generated id when id is empty or unknown. The request is counted and the
// record persisted with the sliding TTL.
//
// A session already marked for cleanup is returned as-is: it is not
// counted and not re-persisted, so its grace TTL keeps running.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, error) {
	var sess *Session
	if id != "" {
		existing, err := m.store.Get(ctx, Key(id))
		switch {
		case err == nil:
			sess = existing
			sess.ID = id
		case errors.Is(err, ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	if sess != nil && sess.MarkedForCleanup {
		return sess, nil
	}

	now := m.now().UTC()
	if sess == nil {
		sess = &Session{
			ID:        m.newID(),
			CreatedAt: now,
		}
	}

	sess.RequestCount++
	sess.LastRequestAt = now

	if err := m.store.Set(ctx, Key(sess.ID), sess, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return sess, nil
}

// Save persists changes made to sess while handling a request, renewing
// the sliding TTL. Marked sessions are left untouched, and so is any record
// that was marked by a concurrent Destroy since sess was resolved.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.MarkedForCleanup {
		return nil
	}

	current, err := m.store.Get(ctx, Key(sess.ID))
	if err == nil && current.MarkedForCleanup {
		return nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := m.store.Set(ctx, Key(sess.ID), sess, m.ttl); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Destroy soft-deletes a session: the record is marked for cleanup and
// re-persisted under the grace TTL rather than removed, so concurrent
// requests still observe a consistent closing record. Final eviction is
// left to the store.
//
// Returns false if no live record exists for id. Destroying an already
// marked session does not extend its grace period.
func (m *Manager) Destroy(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	sess, err := m.store.Get(ctx, Key(id))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.MarkedForCleanup {
		return true, nil
	}

	now := m.now().UTC()
	sess.ID = id
	sess.MarkedForCleanup = true
	sess.CleanupRequestedAt = &now

	if err := m.store.Set(ctx, Key(id), sess, m.graceTTL); err != nil {
		return false, fmt.Errorf("failed to mark session for cleanup: %w", err)
	}
	return true, nil
}

// Ping checks the backing store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
