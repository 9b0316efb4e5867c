// Package mcp provides JSON-RPC 2.0 envelope types and codec utilities
// for the krug-mcp server.
package mcp

import (
	"encoding/json"
)

// Version is the only JSON-RPC version tag this server emits.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes used by the server.
const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
	InvalidParamsCode  = -32602
	InternalErrorCode  = -32603
)

// Request is an inbound JSON-RPC envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`

	raw []byte
}

// Raw returns the bytes the request was parsed from.
func (r *Request) Raw() []byte {
	return r.raw
}

// IsNotification returns true if the request carries no id member.
// An explicit "id": null is treated as a request with a null id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// ParamsMap decodes params into a generic map.
// Returns nil when params are absent or not an object.
func (r *Request) ParamsMap() map[string]any {
	if len(r.Params) == 0 {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(r.Params, &params); err != nil {
		return nil
	}
	return params
}

// Response is an outbound JSON-RPC envelope. Exactly one of Result or Error
// is set. ID is always emitted; a nil ID serializes as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// MarshalJSON emits a null id when none is known.
func (r Response) MarshalJSON() ([]byte, error) {
	type alias Response
	out := alias(r)
	if len(out.ID) == 0 {
		out.ID = json.RawMessage("null")
	}
	return json.Marshal(out)
}

// Error is the error member of a JSON-RPC response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewResult builds a success response. The result is marshalled eagerly.
func NewResult(id json.RawMessage, result any) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: Version, Result: data, ID: id}, nil
}

// NewError builds an error response.
func NewError(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   &Error{Code: code, Message: message, Data: data},
		ID:      id,
	}
}
