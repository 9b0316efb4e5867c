// Package task tracks detached background work started by tool calls.
// Callers start work, get an id back immediately, and poll for progress.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTaskNotFound is returned by Get for unknown or pruned ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("task registry closed")
)

// DefaultRetention is how long finished tasks remain readable.
const DefaultRetention = time.Hour

// Status is the lifecycle state of a task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is a point-in-time snapshot of a task.
type Task struct {
	ID         string     `json:"id"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Progress is handed to Work to report advancement.
type Progress struct {
	r  *Registry
	id string
}

// Step records one more processed item.
func (p *Progress) Step() {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	if t, ok := p.r.tasks[p.id]; ok && t.Status == StatusRunning {
		t.Processed++
	}
}

// Work is the body of a task. It must return promptly once ctx is done.
type Work func(ctx context.Context, p *Progress) error

// Registry owns task state and the goroutines executing it.
// Workers run on a registry-owned context, never on a request's.
type Registry struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	newID     func() string
	now       func() time.Time
	retention time.Duration
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetention sets how long finished tasks stay readable.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger for task lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		tasks:     make(map[string]*Task),
		ctx:       ctx,
		cancel:    cancel,
		newID:     uuid.NewString,
		now:       time.Now,
		retention: DefaultRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers a running task of total items and runs work in the
// background. ctx only gates admission; cancelling it later does not stop
// the task.
func (r *Registry) Start(ctx context.Context, total int, work Work) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if total < 0 {
		return "", fmt.Errorf("task total must be >= 0, got %d", total)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	r.pruneLocked()
	id := r.newID()
	r.tasks[id] = &Task{
		ID:        id,
		Total:     total,
		Status:    StatusRunning,
		StartedAt: r.now(),
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(id, work)

	r.logger.Debug("task started", "task_id", id, "total", total)
	return id, nil
}

func (r *Registry) run(id string, work Work) {
	defer r.wg.Done()

	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("task panicked: %v", p)
			}
		}()
		err = work(r.ctx, &Progress{r: r, id: id})
	}()

	r.finish(id, err)
}

func (r *Registry) finish(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status != StatusRunning {
		return
	}
	now := r.now()
	t.FinishedAt = &now
	if err != nil {
		t.Status = StatusFailed
		t.Error = err.Error()
		r.logger.Warn("task failed", "task_id", id, "processed", t.Processed, "error", err)
		return
	}
	t.Status = StatusCompleted
	r.logger.Debug("task completed", "task_id", id, "processed", t.Processed)
}

// pruneLocked drops finished tasks older than the retention window.
func (r *Registry) pruneLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, t := range r.tasks {
		if t.FinishedAt != nil && t.FinishedAt.Before(cutoff) {
			delete(r.tasks, id)
		}
	}
}

// Get returns a snapshot of the task with id.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return snapshot(t), nil
}

// List returns snapshots of all tasks keyed by id.
func (r *Registry) List() map[string]Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Task, len(r.tasks))
	for id, t := range r.tasks {
		out[id] = snapshot(t)
	}
	return out
}

// Close cancels running work and waits for every worker to return.
// Tasks interrupted this way end up failed.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	return nil
}

func snapshot(t *Task) Task {
	cp := *t
	if t.FinishedAt != nil {
		ft := *t.FinishedAt
		cp.FinishedAt = &ft
	}
	return cp
}
