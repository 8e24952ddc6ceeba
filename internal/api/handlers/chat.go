package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/cloo-solutions/licitai/internal/api"
	"github.com/cloo-solutions/licitai/internal/api/middleware"
	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/logger"
	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/cloo-solutions/licitai/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService is satisfied by *service.Orchestrator.
type ChatService interface {
	ChatWithRoute(ctx context.Context, in service.ChatInput) service.ChatResult
}

type ChatHandler struct {
	chat     ChatService
	sessions session.Store
}

func NewChatHandler(chat ChatService, sessions session.Store) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions}
}

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	UserLabel string `json:"user_label,omitempty"`
}

type ChatResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Route     string   `json:"route"`
	Notices   []string `json:"notices"`
}

// Event types of a streamed chat reply.
const (
	EventNotice = "notice"
	EventAnswer = "answer"
)

// ChatEvent is one line of a streamed /chat reply. Notices arrive while the
// assistant is still working; the answer event is always last.
type ChatEvent struct {
	Type    string        `json:"type"`
	Message string        `json:"message,omitempty"`
	Data    *ChatResponse `json:"data,omitempty"`
}

// noticeCollector gathers progress messages emitted during a chat call and
// forwards each one to emit, when set, as it happens.
type noticeCollector struct {
	mu    sync.Mutex
	items []string
	emit  func(string)
}

func (c *noticeCollector) add(msg string) {
	c.mu.Lock()
	c.items = append(c.items, msg)
	emit := c.emit
	c.mu.Unlock()

	if emit != nil {
		emit(msg)
	}
}

func (c *noticeCollector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.items))
	copy(out, c.items)
	return out
}

// Chat answers one question within a session. A missing session id starts
// a new session whose id is returned to the caller. Clients that accept
// application/x-ndjson get progress notices streamed while the answer is
// being produced; everyone else gets a single enveloped response.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		api.HandleError(w, r, domain.ErrEmptyQuery)
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get(middleware.SessionHeader))
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := r.Context()
	log := logger.FromContext(ctx, nil).With(zap.String("session_id", sessionID))
	ctx = logger.ContextWithLogger(ctx, log)

	history, err := h.sessions.History(ctx, sessionID)
	if err != nil {
		api.HandleError(w, r, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "session store unavailable", err))
		return
	}

	notices := &noticeCollector{}
	var stream *api.Stream
	if api.WantsStream(r) {
		stream = api.NewStream(w)
		notices.emit = func(msg string) {
			stream.Send(ChatEvent{Type: EventNotice, Message: msg})
		}
	}

	result := h.chat.ChatWithRoute(ctx, service.ChatInput{
		Query:      query,
		History:    history,
		UserLabel:  req.UserLabel,
		OnProgress: notices.add,
	})

	err = h.sessions.Append(ctx, sessionID,
		domain.Turn{Role: domain.RoleUser, Content: query},
		domain.Turn{Role: domain.RoleAssistant, Content: result.Answer},
	)
	if err != nil {
		// The answer is still useful; the next turn just loses this context.
		log.Warn("failed to persist session turns", zap.Error(err))
	}

	resp := ChatResponse{
		SessionID: sessionID,
		Answer:    result.Answer,
		Route:     string(result.Route),
		Notices:   notices.all(),
	}
	if stream != nil {
		stream.Send(ChatEvent{Type: EventAnswer, Data: &resp})
		return
	}
	api.Success(w, http.StatusOK, resp)
}

type SessionHandler struct {
	sessions session.Store
}

func NewSessionHandler(sessions session.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type SessionResponse struct {
	SessionID string         `json:"session_id"`
	History   domain.History `json:"history"`
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}

	history, err := h.sessions.History(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, r, fmt.Errorf("load session: %w", err))
		return
	}
	if history == nil {
		history = domain.History{}
	}

	api.Success(w, http.StatusOK, SessionResponse{SessionID: sessionID, History: history})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Reset(r.Context(), sessionID); err != nil {
		api.HandleError(w, r, fmt.Errorf("reset session: %w", err))
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
