package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSE event names.
const (
	eventMessage  = "message"
	eventError    = "error"
	eventComplete = "complete"
)

// sseWriter writes Server-Sent Events to a single response. After the first
// write failure the client is treated as gone and later writes are skipped.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	err     error
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	f, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: f}
}

// open writes extra and the stream headers, then the status.
func (s *sseWriter) open(extra http.Header) {
	h := s.w.Header()
	for k, v := range extra {
		h[k] = v
	}
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// comment writes a keep-alive comment line.
func (s *sseWriter) comment(text string) {
	s.write(":" + text + "\n\n")
}

// event writes one named event with a JSON payload. data may be raw JSON.
func (s *sseWriter) event(name string, data any) {
	var payload []byte
	switch v := data.(type) {
	case json.RawMessage:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			b, _ = json.Marshal(map[string]any{"code": -32603, "message": internalErrorMessage, "data": err.Error()})
		}
		payload = b
	}
	s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", name, payload))
}

func (s *sseWriter) write(chunk string) {
	if s.err != nil {
		return
	}
	if _, err := s.w.Write([]byte(chunk)); err != nil {
		s.err = err
		return
	}
	s.flush()
}

func (s *sseWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// close flushes whatever is buffered. Errors are swallowed: the payload has
// already been sent and must not be masked.
func (s *sseWriter) close() {
	defer func() { _ = recover() }()
	s.flush()
}
