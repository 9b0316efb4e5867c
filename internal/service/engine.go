// Package service contains the JSON-RPC engine and the per-request handler
// that sits between the HTTP transport and the tool registry.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/krug-dev/krug-mcp/internal/ctxkey"
	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/resource"
	"github.com/krug-dev/krug-mcp/internal/domain/tool"
	"github.com/krug-dev/krug-mcp/internal/telemetry"
	"github.com/krug-dev/krug-mcp/pkg/mcp"
)

// JSON-RPC methods served by the engine.
const (
	MethodInitialize        = "initialize"
	MethodInitializedNotice = "notifications/initialized"
	MethodPing              = "ping"
	MethodToolsList         = "tools/list"
	MethodToolsCall         = "tools/call"
	MethodResourcesList     = "resources/list"
	MethodResourcesRead     = "resources/read"
)

const (
	notificationPrefix    = "notifications/"
	methodNotFoundMessage = "Method not found"
	invalidParamsMessage  = "Invalid params"
	internalErrorMessage  = "Internal error"
	invalidRequestMessage = "Invalid Request"
)

// Tool call outcomes reported to observers.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
	OutcomePanic    = "panic"
	OutcomeInvalid  = "invalid_params"
)

// ServerInfo identifies the server in initialize results and discovery documents.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
}

// DefaultServerInfo is the identity advertised when none is configured.
var DefaultServerInfo = ServerInfo{
	Name:            "Krug MCP Server",
	Version:         "1.0.0",
	ProtocolVersion: "2025-03-26",
}

// ToolObserver receives one callback per tools/call.
type ToolObserver interface {
	ObserveToolCall(name string, risk tool.RiskLevel, outcome string, d time.Duration)
}

// Engine dispatches parsed JSON-RPC requests to tools and resources.
// It is stateless across requests and safe for concurrent use.
type Engine struct {
	tools       tool.Registry
	resources   resource.Provider
	info        ServerInfo
	observer    ToolObserver
	instruments *telemetry.Instruments
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithResources sets the resource provider. Default: none.
func WithResources(p resource.Provider) EngineOption {
	return func(e *Engine) { e.resources = p }
}

// WithServerInfo overrides DefaultServerInfo.
func WithServerInfo(info ServerInfo) EngineOption {
	return func(e *Engine) { e.info = info }
}

// WithToolObserver registers a tools/call observer.
func WithToolObserver(o ToolObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithInstruments records tool calls through otel metrics.
func WithInstruments(i *telemetry.Instruments) EngineOption {
	return func(e *Engine) { e.instruments = i }
}

// WithEngineLogger sets the fallback logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine bound to a tool registry.
func NewEngine(tools tool.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		tools:     tools,
		resources: resource.Providers(nil),
		info:      DefaultServerInfo,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Info returns the advertised server identity.
func (e *Engine) Info() ServerInfo {
	return e.info
}

// Tools returns the catalogue visible to caller.
func (e *Engine) Tools(ctx context.Context, caller *auth.AuthContext) []tool.Descriptor {
	return e.tools.List(ctx, caller)
}

// Dispatch executes req and returns its response, or nil for notifications.
// Notifications are still executed for their side effects.
func (e *Engine) Dispatch(ctx context.Context, req *mcp.Request, caller *auth.AuthContext) *mcp.Response {
	ctx, span := telemetry.StartRPCSpan(ctx, req.Method, attribute.String(telemetry.SpanAttrSubject, subjectOf(caller)))
	defer span.End()

	result, rpcErr := e.call(ctx, req, caller)
	if rpcErr != nil {
		span.SetAttributes(attribute.Int(telemetry.SpanAttrErrorCode, rpcErr.Code))
		telemetry.SetSpanError(span, rpcErr)
	}

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return &mcp.Response{JSONRPC: mcp.Version, Error: rpcErr, ID: req.ID}
	}

	resp, err := mcp.NewResult(req.ID, result)
	if err != nil {
		return mcp.NewError(req.ID, mcp.InternalErrorCode, internalErrorMessage, err.Error())
	}
	return resp
}

func (e *Engine) call(ctx context.Context, req *mcp.Request, caller *auth.AuthContext) (any, *mcp.Error) {
	switch req.Method {
	case "":
		return nil, &mcp.Error{Code: mcp.InvalidRequestCode, Message: invalidRequestMessage, Data: "missing method"}
	case MethodInitialize:
		return e.initialize(), nil
	case MethodPing:
		return struct{}{}, nil
	case MethodToolsList:
		return map[string]any{"tools": e.tools.List(ctx, caller)}, nil
	case MethodToolsCall:
		return e.callTool(ctx, req, caller)
	case MethodResourcesList:
		return map[string]any{"resources": e.resources.List(ctx)}, nil
	case MethodResourcesRead:
		return e.readResource(ctx, req)
	}

	if strings.HasPrefix(req.Method, notificationPrefix) {
		return struct{}{}, nil
	}
	return nil, &mcp.Error{Code: mcp.MethodNotFoundCode, Message: methodNotFoundMessage, Data: req.Method}
}

func (e *Engine) initialize() map[string]any {
	return map[string]any{
		"protocolVersion": e.info.ProtocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    e.info.Name,
			"version": e.info.Version,
		},
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (e *Engine) callTool(ctx context.Context, req *mcp.Request, caller *auth.AuthContext) (any, *mcp.Error) {
	var params toolCallParams
	if err := decodeParams(req.Params, &params); err != nil || params.Name == "" {
		return nil, &mcp.Error{Code: mcp.InvalidParamsCode, Message: invalidParamsMessage, Data: "tools/call requires a tool name"}
	}

	args := map[string]any{}
	if len(params.Arguments) > 0 && string(params.Arguments) != "null" {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return nil, &mcp.Error{Code: mcp.InvalidParamsCode, Message: invalidParamsMessage, Data: "arguments must be an object"}
		}
	}

	logger := loggerFromContext(ctx, e.logger)
	start := time.Now()

	t, err := e.tools.Lookup(ctx, caller, params.Name)
	if err != nil {
		e.observe(ctx, params.Name, tool.RiskLevelLow, OutcomeNotFound, time.Since(start))
		logger.Warn("unknown tool", "tool", params.Name)
		return nil, &mcp.Error{Code: mcp.InternalErrorCode, Message: internalErrorMessage, Data: err.Error()}
	}

	risk := tool.Classify(params.Name)
	result, err := e.invoke(ctx, t, args, caller, risk)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		e.observe(ctx, params.Name, risk, OutcomeOK, elapsed)
		logger.Debug("tool call completed", "tool", params.Name, "risk", risk, "duration", elapsed)
		return result, nil
	case errors.Is(err, tool.ErrInvalidArguments):
		e.observe(ctx, params.Name, risk, OutcomeInvalid, elapsed)
		return nil, &mcp.Error{Code: mcp.InvalidParamsCode, Message: invalidParamsMessage, Data: err.Error()}
	case errors.As(err, new(*panicError)):
		e.observe(ctx, params.Name, risk, OutcomePanic, elapsed)
		logger.Error("tool panicked", "tool", params.Name, "error", err)
		return nil, &mcp.Error{Code: mcp.InternalErrorCode, Message: internalErrorMessage, Data: err.Error()}
	default:
		e.observe(ctx, params.Name, risk, OutcomeError, elapsed)
		logger.Warn("tool call failed", "tool", params.Name, "risk", risk, "error", err)
		return nil, &mcp.Error{Code: mcp.InternalErrorCode, Message: internalErrorMessage, Data: err.Error()}
	}
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("%v", p.value)
}

// invoke runs the tool inside its own span and converts panics to errors.
func (e *Engine) invoke(ctx context.Context, t tool.Tool, args map[string]any, caller *auth.AuthContext, risk tool.RiskLevel) (result tool.Result, err error) {
	ctx, span := telemetry.StartToolSpan(ctx, t.Descriptor().Name, attribute.String(telemetry.SpanAttrRisk, string(risk)))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
		telemetry.SetSpanError(span, err)
	}()

	result, err = t.Invoke(ctx, args, caller)
	if err == nil && result.Content == nil {
		result.Content = []tool.Content{}
	}
	return result, err
}

func (e *Engine) observe(ctx context.Context, name string, risk tool.RiskLevel, outcome string, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveToolCall(name, risk, outcome, d)
	}
	e.instruments.RecordToolCall(ctx, name, outcome, d)
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

func (e *Engine) readResource(ctx context.Context, req *mcp.Request) (any, *mcp.Error) {
	var params resourceReadParams
	if err := decodeParams(req.Params, &params); err != nil || params.URI == "" {
		return nil, &mcp.Error{Code: mcp.InvalidParamsCode, Message: invalidParamsMessage, Data: "resources/read requires a uri"}
	}

	r := e.resources.Read(ctx, params.URI)
	switch r.Status {
	case resource.StatusFound:
		return map[string]any{"contents": r.Contents}, nil
	case resource.StatusError:
		loggerFromContext(ctx, e.logger).Warn("resource read failed", "uri", params.URI, "error", r.Err)
		return nil, &mcp.Error{Code: mcp.InternalErrorCode, Message: internalErrorMessage, Data: r.Err.Error()}
	default:
		return nil, &mcp.Error{
			Code:    mcp.InternalErrorCode,
			Message: internalErrorMessage,
			Data:    fmt.Sprintf("%s: %s", resource.ErrUnknownResource, params.URI),
		}
	}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing params")
	}
	return json.Unmarshal(raw, v)
}

func subjectOf(caller *auth.AuthContext) string {
	if caller == nil {
		return ""
	}
	return caller.Subject
}

// loggerFromContext retrieves the request-scoped logger set by the HTTP
// middleware, falling back to def.
func loggerFromContext(ctx context.Context, def *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return def
}
