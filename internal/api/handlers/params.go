package handlers

import (
	"net/http"
	"strings"

	"github.com/cloo-solutions/licitai/internal/api"
	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/go-chi/chi/v5"
)

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		api.HandleError(w, r, domain.ErrMissingSessionID)
		return "", false
	}
	return id, true
}
