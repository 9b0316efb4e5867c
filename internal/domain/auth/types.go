// Package auth contains the domain types and logic for bearer-token
// authentication of MCP requests.
package auth

import (
	"errors"
)

// AuthTypeAPIKey is the auth_type recorded for shared-secret bearer tokens.
const AuthTypeAPIKey = "api_key"

// Transport attempts derived from the Accept header.
const (
	TransportSSE  = "sse"
	TransportHTTP = "http"
)

// DefaultSubject is the identity attached to callers presenting the shared secret.
const DefaultSubject = "jon.doe@example.com"

// Sentinel causes wrapped by AuthenticationError.
var (
	// ErrMissingCredentials means neither auth header carried a Bearer value.
	ErrMissingCredentials = errors.New("missing or invalid Authorization header")
	// ErrInvalidToken means a Bearer value was present but did not verify.
	ErrInvalidToken = errors.New("invalid token")
)

// AuthContext describes an authenticated caller. It is built fresh for each
// request and never persisted.
type AuthContext struct {
	Authenticated    bool   `json:"authenticated"`
	Subject          string `json:"user"`
	RequestID        string `json:"request_id,omitempty"`
	UserAgent        string `json:"user_agent,omitempty"`
	RemoteIP         string `json:"remote_ip,omitempty"`
	AuthType         string `json:"auth_type"`
	TransportAttempt string `json:"transport_attempt"`
	RequestMethod    string `json:"request_method"`
}

// WantsSSE returns true if the caller negotiated an event stream.
func (c *AuthContext) WantsSSE() bool {
	return c != nil && c.TransportAttempt == TransportSSE
}

// AuthenticationError reports why a request could not be authenticated.
// Its message is safe to return to the client.
type AuthenticationError struct {
	Err error
}

// Error returns the client-facing reason.
func (e *AuthenticationError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
