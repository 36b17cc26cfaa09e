package app

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseStream writes server-sent events. Headers go out with the first event,
// so a handler can still answer with a plain JSON error before that.
type sseStream struct {
	w       http.ResponseWriter
	started bool
}

func newSSEStream(w http.ResponseWriter) *sseStream {
	return &sseStream{w: w}
}

func (s *sseStream) start() {
	if s.started {
		return
	}
	header := s.w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *sseStream) send(payload any) error {
	s.start()
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (s *sseStream) chunk(content string) error {
	return s.send(map[string]any{"content": content})
}

func (s *sseStream) done(extra map[string]any) error {
	payload := map[string]any{"done": true}
	for key, value := range extra {
		payload[key] = value
	}
	return s.send(payload)
}

// fail reports err to the client. Before the stream has started, client
// errors keep their JSON shape and status; everything else becomes a final
// error event.
func (s *sseStream) fail(err error) {
	status, code, message, details := mapError(err)
	if !s.started && status < http.StatusInternalServerError {
		writeError(s.w, status, code, message, details)
		return
	}
	_ = s.send(map[string]any{"error": message, "code": code})
}
