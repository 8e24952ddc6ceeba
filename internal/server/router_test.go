package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/licitai/internal/api/handlers"
	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/cloo-solutions/licitai/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) ChatWithRoute(ctx context.Context, in service.ChatInput) service.ChatResult {
	args := m.Called(ctx, in)
	return args.Get(0).(service.ChatResult)
}

type MockSchemaService struct {
	mock.Mock
}

func (m *MockSchemaService) Keys(ctx context.Context) []string {
	return m.Called(ctx).Get(0).([]string)
}

func (m *MockSchemaService) LoadedAt() time.Time {
	return m.Called().Get(0).(time.Time)
}

func (m *MockSchemaService) Refresh(ctx context.Context) service.SchemaSnapshot {
	return m.Called(ctx).Get(0).(service.SchemaSnapshot)
}

func (m *MockSchemaService) DiscoverValidStates(ctx context.Context) []string {
	return m.Called(ctx).Get(0).([]string)
}

const adminToken = "admin-token"

func setupRouter() (http.Handler, *MockChatService, *MockSchemaService) {
	chat := new(MockChatService)
	schema := new(MockSchemaService)
	store := session.NewMemoryStore(domain.HistoryWindow)

	cfg := RouterConfig{
		AdminToken:     adminToken,
		ChatHandler:    handlers.NewChatHandler(chat, store),
		SessionHandler: handlers.NewSessionHandler(store),
		SchemaHandler:  handlers.NewSchemaHandler(schema),
	}

	return NewRouter(cfg), chat, schema
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "licitai_http_requests_total")
}

func TestRouter_ChatThenSession(t *testing.T) {
	router, chat, _ := setupRouter()
	chat.On("ChatWithRoute", mock.Anything, mock.Anything).Return(service.ChatResult{Answer: "Son las 3 PM.", Route: domain.RouteWeb})

	body := `{"session_id":"s-1","query":"que hora es?"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"route":"WEB"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/s-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Son las 3 PM.")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/s-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_AdminRoutes_RequireToken(t *testing.T) {
	router, _, schema := setupRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/admin/schema"},
		{http.MethodPost, "/admin/schema/refresh"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	schema.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestRouter_AdminRoutes_WithToken(t *testing.T) {
	router, _, schema := setupRouter()
	schema.On("Refresh", mock.Anything).Return(service.SchemaSnapshot{Keys: []string{"cliente"}, LoadedAt: time.Now()})
	schema.On("DiscoverValidStates", mock.Anything).Return([]string{"PENDIENTE"})

	req := httptest.NewRequest(http.MethodPost, "/admin/schema/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"keys":["cliente"]`)
	schema.AssertExpectations(t)
}
