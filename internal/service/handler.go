package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/session"
	"github.com/krug-dev/krug-mcp/pkg/mcp"
)

// ParseError reports a body that is not a JSON-RPC request object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse error: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidRequest reports whether the body was valid JSON with a malformed
// envelope rather than a syntax error.
func (e *ParseError) InvalidRequest() bool { return errors.Is(e.Err, mcp.ErrInvalidRequest) }

// DispatchError reports a failure escaping the engine. ID echoes the request
// id when it was parsed.
type DispatchError struct {
	ID  json.RawMessage
	Err error
}

func (e *DispatchError) Error() string { return "dispatch failed: " + e.Err.Error() }

func (e *DispatchError) Unwrap() error { return e.Err }

// Outcome is the result of handling one request body.
type Outcome struct {
	// Response is the encoded JSON-RPC response. Nil when Notification is set.
	Response []byte
	// Notification means no response body is expected.
	Notification bool
	// RequestID is the parsed request id, if any.
	RequestID json.RawMessage
	// Method is the parsed method name.
	Method string
	// Session is the session passed in, possibly mutated by initialize.
	Session *session.Session
}

// RequestHandler runs the per-request state machine: parse, apply the
// initialize hook, short-circuit the initialized notification, dispatch.
type RequestHandler struct {
	engine *Engine
	logger *slog.Logger
}

// NewRequestHandler creates a handler dispatching through engine.
func NewRequestHandler(engine *Engine, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestHandler{engine: engine, logger: logger}
}

// Engine returns the underlying engine.
func (h *RequestHandler) Engine() *Engine {
	return h.engine
}

// Call is a parsed request body ready for Execute.
type Call struct {
	req            *mcp.Request
	clientResponse bool
}

// ID returns the request id, or nil for notifications and client responses.
func (c *Call) ID() json.RawMessage {
	if c.req == nil {
		return nil
	}
	return c.req.ID
}

// Method returns the request method, or "" for client responses.
func (c *Call) Method() string {
	if c.req == nil {
		return ""
	}
	return c.req.Method
}

// Parse validates body without side effects. The error is a *ParseError.
func (h *RequestHandler) Parse(body []byte) (*Call, error) {
	// Replies to server-initiated requests carry nothing to dispatch.
	if mcp.IsClientResponse(body) {
		return &Call{clientResponse: true}, nil
	}
	req, err := mcp.ParseRequest(body)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return &Call{req: req}, nil
}

// Handle parses and executes body in one step.
func (h *RequestHandler) Handle(ctx context.Context, body []byte, sess *session.Session, caller *auth.AuthContext) (*Outcome, error) {
	call, err := h.Parse(body)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, call, sess, caller)
}

// Execute applies the initialize hook to sess and dispatches call. The
// returned error is a *DispatchError; JSON-RPC level failures are carried
// inside Outcome.Response.
func (h *RequestHandler) Execute(ctx context.Context, call *Call, sess *session.Session, caller *auth.AuthContext) (*Outcome, error) {
	out := &Outcome{Session: sess}
	if call.clientResponse {
		out.Notification = true
		return out, nil
	}

	req := call.req
	out.RequestID = req.ID
	out.Method = req.Method

	if req.Method == MethodInitialize && sess != nil {
		sess.Initialized = true
		if info, ok := req.ParamsMap()["clientInfo"].(map[string]any); ok {
			sess.ClientInfo = info
		}
		loggerFromContext(ctx, h.logger).Info("session initialized", "client", sess.ClientName())
	}

	if req.Method == MethodInitializedNotice && req.IsNotification() {
		out.Notification = true
		return out, nil
	}

	resp, err := h.dispatch(ctx, req, caller)
	if err != nil {
		return nil, &DispatchError{ID: req.ID, Err: err}
	}
	if resp == nil {
		out.Notification = true
		return out, nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, &DispatchError{ID: req.ID, Err: fmt.Errorf("encode response: %w", err)}
	}
	out.Response = data
	return out, nil
}

func (h *RequestHandler) dispatch(ctx context.Context, req *mcp.Request, caller *auth.AuthContext) (resp *mcp.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
			loggerFromContext(ctx, h.logger).Error("panic during dispatch", "method", req.Method, "panic", p)
		}
	}()
	return h.engine.Dispatch(ctx, req, caller), nil
}
