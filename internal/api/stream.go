package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
)

// NDJSONContentType is the media type of streamed responses: one JSON value
// per line, flushed as soon as it is written.
const NDJSONContentType = "application/x-ndjson"

// WantsStream reports whether the client asked for a streamed response.
func WantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), NDJSONContentType)
}

// Stream writes newline-delimited JSON events and flushes after each one.
// Send is safe for concurrent use; the status line goes out with the first
// event, so errors known up front must still use Error or HandleError.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	enc     *json.Encoder
	started bool
	broken  bool
}

func NewStream(w http.ResponseWriter) *Stream {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Stream{w: w, rc: http.NewResponseController(w), enc: enc}
}

// Send writes one event. Once a write fails (client gone) later events are
// dropped silently.
func (s *Stream) Send(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken {
		return
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", NDJSONContentType)
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Content-Type-Options", "nosniff")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := s.enc.Encode(event); err != nil {
		s.broken = true
		return
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.broken = true
	}
}
