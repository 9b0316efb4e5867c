// Package sqlite provides a SQLite-backed session store for single-node
// deployments that want sessions to survive a restart.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/krug-dev/krug-mcp/internal/domain/session"
)

// DefaultExpiryCheck is how often expired rows are purged.
const DefaultExpiryCheck = time.Minute

// SessionStore implements session.Store on a SQLite table.
// Expired rows are hidden from Get immediately and purged by the store's
// own background sweep.
type SessionStore struct {
	db          *sql.DB
	now         func() time.Time
	expiryCheck time.Duration
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	once        sync.Once
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithExpiryCheck sets the sweep interval. Default: DefaultExpiryCheck.
func WithExpiryCheck(d time.Duration) Option {
	return func(s *SessionStore) {
		if d > 0 {
			s.expiryCheck = d
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore opens (or creates) the database at path and starts the
// sweep goroutine. An empty path or ":memory:" uses an in-memory database.
func NewSessionStore(ctx context.Context, path string, opts ...Option) (*SessionStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS mcp_sessions (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_mcp_sessions_expires_at ON mcp_sessions(expires_at)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	s := &SessionStore{
		db:          db,
		now:         time.Now,
		expiryCheck: DefaultExpiryCheck,
	}
	for _, opt := range opts {
		opt(s)
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(sweepCtx)

	return s, nil
}

// Get returns the record under key, or session.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, key string) (*session.Session, error) {
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM mcp_sessions WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	if expiresAt <= s.now().UnixNano() {
		return nil, session.ErrNotFound
	}
	return session.Unmarshal(data)
}

// Set upserts sess under key with the given TTL.
func (s *SessionStore) Set(ctx context.Context, key string, sess *session.Session, ttl time.Duration) error {
	data, err := session.Marshal(sess)
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(ttl).UnixNano()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mcp_sessions (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, data, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the sweep and closes the database. Safe to call multiple times.
func (s *SessionStore) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Len returns the number of rows, including expired rows not yet purged.
func (s *SessionStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mcp_sessions`).Scan(&n)
	return n, err
}

func (s *SessionStore) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

func (s *SessionStore) purge(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mcp_sessions WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("failed to purge expired sessions", "error", err)
		}
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Debug("purged expired sessions", "count", n)
	}
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
