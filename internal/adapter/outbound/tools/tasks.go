package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/resource"
	"github.com/krug-dev/krug-mcp/internal/domain/task"
	"github.com/krug-dev/krug-mcp/internal/domain/tool"
)

// DefaultItemDelay is the simulated cost of processing one item.
const DefaultItemDelay = 500 * time.Millisecond

// TasksURI is the resource listing every task.
const TasksURI = "tasks://all"

// ProcessItemsTool starts background item processing.
type ProcessItemsTool struct {
	tasks     *task.Registry
	itemDelay time.Duration
}

// NewProcessItemsTool creates the process_items tool.
func NewProcessItemsTool(tasks *task.Registry, itemDelay time.Duration) *ProcessItemsTool {
	if itemDelay < 0 {
		itemDelay = DefaultItemDelay
	}
	return &ProcessItemsTool{tasks: tasks, itemDelay: itemDelay}
}

// Descriptor implements tool.Tool.
func (t *ProcessItemsTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "process_items",
		Description: "Process items asynchronously; poll get_status for progress",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"count":{"type":"integer","minimum":0,"description":"Number of items to process"}},"required":["count"]}`),
	}
}

// Invoke implements tool.Tool. It returns as soon as the task is registered.
func (t *ProcessItemsTool) Invoke(ctx context.Context, args map[string]any, _ *auth.AuthContext) (tool.Result, error) {
	count, err := intArg(args, "count", true, 0)
	if err != nil {
		return tool.Result{}, err
	}
	if count < 0 {
		return tool.Result{}, invalidArg("count must be >= 0")
	}

	id, err := t.tasks.Start(ctx, count, processItems(count, t.itemDelay))
	if err != nil {
		return tool.Result{}, fmt.Errorf("start task: %w", err)
	}

	return tool.JSONResult(map[string]any{
		"task_id": id,
		"message": fmt.Sprintf("Started processing %d items", count),
	})
}

func processItems(count int, delay time.Duration) task.Work {
	return func(ctx context.Context, p *task.Progress) error {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		for i := 0; i < count; i++ {
			if i > 0 {
				timer.Reset(delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
			p.Step()
		}
		return nil
	}
}

// GetStatusTool reports task progress.
type GetStatusTool struct {
	tasks *task.Registry
}

// NewGetStatusTool creates the get_status tool.
func NewGetStatusTool(tasks *task.Registry) *GetStatusTool {
	return &GetStatusTool{tasks: tasks}
}

// Descriptor implements tool.Tool.
func (t *GetStatusTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "get_status",
		Description: "Get status of a task",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string","description":"Task ID"}},"required":["task_id"]}`),
	}
}

// Invoke implements tool.Tool. Unknown ids yield an error document, not a failure.
func (t *GetStatusTool) Invoke(_ context.Context, args map[string]any, _ *auth.AuthContext) (tool.Result, error) {
	id, err := idArg(args, "task_id")
	if err != nil {
		return tool.Result{}, err
	}

	snap, err := t.tasks.Get(id)
	if errors.Is(err, task.ErrTaskNotFound) {
		return tool.JSONResult(map[string]string{"error": "Task not found"})
	}
	if err != nil {
		return tool.Result{}, err
	}
	return tool.JSONResult(snap)
}

// TasksResource exposes every task as tasks://all.
type TasksResource struct {
	tasks *task.Registry
}

// NewTasksResource creates the tasks resource provider.
func NewTasksResource(tasks *task.Registry) *TasksResource {
	return &TasksResource{tasks: tasks}
}

// List implements resource.Provider.
func (r *TasksResource) List(context.Context) []resource.Descriptor {
	return []resource.Descriptor{{
		URI:         TasksURI,
		Name:        "All Tasks",
		Description: "View all tasks",
		MimeType:    "application/json",
	}}
}

// Read implements resource.Provider.
func (r *TasksResource) Read(_ context.Context, uri string) resource.ReadResult {
	if uri != TasksURI {
		return resource.NotFound()
	}
	data, err := json.Marshal(r.tasks.List())
	if err != nil {
		return resource.Failed(fmt.Errorf("marshal tasks: %w", err))
	}
	return resource.Found(resource.Contents{URI: uri, MimeType: "application/json", Text: string(data)})
}

var _ resource.Provider = (*TasksResource)(nil)
