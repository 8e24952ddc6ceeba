// Package session keeps per-session conversation history for front ends.
// The assistant core never sees this state; adapters load a History,
// pass it into a chat call and append the resulting turns.
package session

import (
	"context"
	"sync"

	"github.com/cloo-solutions/licitai/internal/domain"
)

// Store maps a session key to a bounded history window.
type Store interface {
	History(ctx context.Context, sessionID string) (domain.History, error)
	Append(ctx context.Context, sessionID string, turns ...domain.Turn) error
	Reset(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	window   int
	sessions map[string]domain.History
}

// NewMemoryStore creates a store keeping the last window turns per session.
func NewMemoryStore(window int) *MemoryStore {
	if window <= 0 {
		window = domain.HistoryWindow
	}
	return &MemoryStore{window: window, sessions: make(map[string]domain.History)}
}

// History returns a copy of the session history; unknown sessions are empty.
func (s *MemoryStore) History(_ context.Context, sessionID string) (domain.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.sessions[sessionID]
	out := make(domain.History, len(h))
	copy(out, h)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turns ...domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.sessions[sessionID], turns...)
	trimmed := make(domain.History, 0, s.window)
	s.sessions[sessionID] = append(trimmed, h.Trim(s.window)...)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}
