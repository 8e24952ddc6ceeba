package server

import (
	"net/http"

	"github.com/cloo-solutions/licitai/internal/api"
	"github.com/cloo-solutions/licitai/internal/api/handlers"
	"github.com/cloo-solutions/licitai/internal/api/middleware"
	"github.com/cloo-solutions/licitai/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Logger         *zap.Logger
	AdminToken     string
	ChatHandler    *handlers.ChatHandler
	SessionHandler *handlers.SessionHandler
	SchemaHandler  *handlers.SchemaHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID(cfg.Logger))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat", cfg.ChatHandler.Chat)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/{id}", cfg.SessionHandler.Get)
		r.Delete("/{id}", cfg.SessionHandler.Delete)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminToken(cfg.AdminToken))

		r.Route("/admin/schema", func(r chi.Router) {
			r.Get("/", cfg.SchemaHandler.Get)
			r.Post("/refresh", cfg.SchemaHandler.Refresh)
		})
	})

	return r
}
