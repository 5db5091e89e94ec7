package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jfowler/readaloud/internal/stream"
)

// sseSink writes stream events as server-sent events, flushing after each
// one so segments reach the client as they finish.
type sseSink struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSESink(w http.ResponseWriter) (*sseSink, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &sseSink{w: w, f: f}, true
}

func (s *sseSink) Send(kind stream.Kind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
