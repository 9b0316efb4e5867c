// Package tool contains the tool capability, invocation results, and the
// closed registry used for tools/list and tools/call dispatch.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
)

var (
	// ErrToolNotFound is returned when a tool name is not in the registry.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidArguments is wrapped by tools rejecting their arguments.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// RiskLevel is a coarse classification of what a tool does, derived from its name.
// It is used for logging and metric labels, never for access decisions.
type RiskLevel string

const (
	// RiskLevelLow indicates read-only, informational operations.
	RiskLevelLow RiskLevel = "LOW"
	// RiskLevelMedium indicates reads that may touch sensitive data.
	RiskLevelMedium RiskLevel = "MEDIUM"
	// RiskLevelHigh indicates write operations or side effects.
	RiskLevelHigh RiskLevel = "HIGH"
	// RiskLevelCritical indicates destructive operations or system commands.
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// IsValid returns true if the risk level is a known valid level.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	default:
		return false
	}
}

// Descriptor is the catalogue entry advertised in tools/list.
type Descriptor struct {
	// Name is the unique identifier for this tool (required).
	Name string `json:"name"`

	// Description is a human-readable description.
	Description string `json:"description"`

	// InputSchema is the JSON Schema for the tool's arguments (required).
	InputSchema json.RawMessage `json:"inputSchema"`

	// RiskLevel is computed by the registry, not advertised.
	RiskLevel RiskLevel `json:"-"`
}

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of a successful invocation.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// TextResult wraps text in a single text content item.
func TextResult(text string) Result {
	return Result{Content: []Content{{Type: "text", Text: text}}}
}

// JSONResult marshals v and wraps it as text content.
func JSONResult(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("marshal tool result: %w", err)
	}
	return TextResult(string(data)), nil
}

// Tool is a single invocable capability.
// Invoke receives the decoded arguments object (never nil) and the caller's
// auth context. A returned error becomes a JSON-RPC internal error.
type Tool interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, args map[string]any, caller *auth.AuthContext) (Result, error)
}

// Registry resolves tools for a caller.
type Registry interface {
	// List returns the tools visible to the caller in a stable order.
	List(ctx context.Context, caller *auth.AuthContext) []Descriptor
	// Lookup returns the named tool or ErrToolNotFound.
	Lookup(ctx context.Context, caller *auth.AuthContext, name string) (Tool, error)
}

// Func adapts a descriptor and a function into a Tool.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, args map[string]any, caller *auth.AuthContext) (Result, error)
}

// Descriptor implements Tool.
func (f Func) Descriptor() Descriptor { return f.Desc }

// Invoke implements Tool.
func (f Func) Invoke(ctx context.Context, args map[string]any, caller *auth.AuthContext) (Result, error) {
	return f.Fn(ctx, args, caller)
}
