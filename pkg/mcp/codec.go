package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

var (
	// ErrEmptyBody is returned by ParseRequest when the body is blank.
	ErrEmptyBody = errors.New("empty request body")
	// ErrInvalidRequest marks a well-formed JSON object whose members do not
	// fit the request envelope. It maps to InvalidRequestCode.
	ErrInvalidRequest = errors.New("invalid request")
)

// EncodeMessage serializes a JSON-RPC message to its wire format.
// This delegates to the MCP SDK's jsonrpc package.
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// DecodeMessage deserializes strict JSON-RPC 2.0 wire data into a Message.
// It returns either a *jsonrpc.Request or *jsonrpc.Response.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	return jsonrpc.DecodeMessage(data)
}

// ParseRequest decodes an inbound envelope.
//
// Parsing is lenient about the "jsonrpc" member so that clients which omit it
// are still served; the version is preserved on the returned Request for
// callers that want to enforce it. Malformed JSON, non-object documents and
// blank bodies map to ParseErrorCode; objects with mistyped members wrap
// ErrInvalidRequest.
func ParseRequest(body []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBody
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("invalid JSON")
	}
	if trimmed[0] != '{' {
		return nil, errors.New("request must be a JSON object")
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.raw = trimmed
	return &req, nil
}

// IsClientResponse reports whether body is a strict JSON-RPC response rather
// than a request, as sent by a client answering a server-initiated request.
func IsClientResponse(body []byte) bool {
	msg, err := jsonrpc.DecodeMessage(bytes.TrimSpace(body))
	if err != nil {
		return false
	}
	_, ok := msg.(*jsonrpc.Response)
	return ok
}

// ValidateResponse checks that data is a well-formed JSON-RPC response
// document: a JSON object carrying either a result or an error member.
func ValidateResponse(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ErrEmptyBody
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return fmt.Errorf("invalid JSON-RPC response: %w", err)
	}
	_, hasResult := doc["result"]
	_, hasError := doc["error"]
	if !hasResult && !hasError {
		return errors.New("invalid JSON-RPC response: missing result and error")
	}
	return nil
}
