package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/krug-dev/krug-mcp/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts ...Option) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(context.Background(), ":memory:", opts...)
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteSessionStore_SetGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	sess := &session.Session{ID: "s1", RequestCount: 2, ClientInfo: map[string]any{"name": "x"}}
	if err := store.Set(ctx, session.Key("s1"), sess, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, session.Key("s1"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "s1" || got.RequestCount != 2 || got.ClientName() != "x" {
		t.Errorf("Get() = %+v", got)
	}

	// Upsert replaces the value.
	sess.RequestCount = 3
	_ = store.Set(ctx, session.Key("s1"), sess, time.Minute)
	got, _ = store.Get(ctx, session.Key("s1"))
	if got.RequestCount != 3 {
		t.Errorf("RequestCount = %d, want 3", got.RequestCount)
	}
}

func TestSQLiteSessionStore_Expiry(t *testing.T) {
	clock := &testClock{now: time.Now()}
	store := newTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	_ = store.Set(ctx, "k", &session.Session{ID: "k"}, time.Minute)
	clock.Advance(time.Minute)

	if _, err := store.Get(ctx, "k"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSessionStore_Purge(t *testing.T) {
	clock := &testClock{now: time.Now()}
	store := newTestStore(t, WithClock(clock.Now), WithExpiryCheck(10*time.Millisecond))
	ctx := context.Background()

	_ = store.Set(ctx, "short", &session.Session{ID: "short"}, time.Second)
	_ = store.Set(ctx, "long", &session.Session{ID: "long"}, time.Hour)
	clock.Advance(2 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := store.Len(ctx); n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	n, _ := store.Len(ctx)
	t.Errorf("Len() = %d after purge, want 1", n)
}

func TestSQLiteSessionStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	first, err := NewSessionStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	_ = first.Set(ctx, "k", &session.Session{ID: "k", Initialized: true}, time.Hour)
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := NewSessionStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSessionStore() reopen error = %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Initialized {
		t.Error("Initialized = false after reopen")
	}
}

func TestSQLiteSessionStore_CloseIdempotent(t *testing.T) {
	store, err := NewSessionStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
