// Package session tracks per-client MCP sessions across HTTP requests.
package session

import (
	"time"
)

// KeyPrefix namespaces session records in the shared store.
const KeyPrefix = "mcp_session:"

// Key returns the store key for a session id.
func Key(id string) string {
	return KeyPrefix + id
}

// Session is the state kept for one MCP client between requests.
// Records are owned by Manager and persisted through a Store with a TTL
// attached on every write.
type Session struct {
	ID            string         `msgpack:"id" json:"id"`
	CreatedAt     time.Time      `msgpack:"created_at" json:"created_at"`
	LastRequestAt time.Time      `msgpack:"last_request_at" json:"last_request_at"`
	RequestCount  int64          `msgpack:"request_count" json:"request_count"`
	Initialized   bool           `msgpack:"initialized" json:"initialized"`
	ClientInfo    map[string]any `msgpack:"client_info,omitempty" json:"client_info,omitempty"`

	// MarkedForCleanup is set by Destroy. A marked session is never
	// touched again; it lives out its grace TTL and then expires.
	MarkedForCleanup   bool       `msgpack:"marked_for_cleanup" json:"marked_for_cleanup"`
	CleanupRequestedAt *time.Time `msgpack:"cleanup_requested_at,omitempty" json:"cleanup_requested_at,omitempty"`
}

// ClientName returns clientInfo.name, or "" if the client did not send one.
func (s *Session) ClientName() string {
	if s == nil || s.ClientInfo == nil {
		return ""
	}
	name, _ := s.ClientInfo["name"].(string)
	return name
}
