package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/licitai/internal/api"
	"github.com/cloo-solutions/licitai/internal/service"
)

// SchemaService is satisfied by *service.SchemaCache.
type SchemaService interface {
	Keys(ctx context.Context) []string
	LoadedAt() time.Time
	Refresh(ctx context.Context) service.SchemaSnapshot
	DiscoverValidStates(ctx context.Context) []string
}

type SchemaHandler struct {
	schema SchemaService
}

func NewSchemaHandler(schema SchemaService) *SchemaHandler {
	return &SchemaHandler{schema: schema}
}

type SchemaResponse struct {
	Keys     []string  `json:"keys"`
	States   []string  `json:"states"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Get returns the cached keys, loading them on first use.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	keys := h.schema.Keys(r.Context())
	api.Success(w, http.StatusOK, SchemaResponse{
		Keys:     keys,
		States:   h.schema.DiscoverValidStates(r.Context()),
		LoadedAt: h.schema.LoadedAt(),
	})
}

// Refresh re-reads the keys from the store.
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap := h.schema.Refresh(r.Context())
	api.Success(w, http.StatusOK, SchemaResponse{
		Keys:     snap.Keys,
		States:   h.schema.DiscoverValidStates(r.Context()),
		LoadedAt: snap.LoadedAt,
	})
}
