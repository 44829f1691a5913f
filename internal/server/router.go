package server

import (
	"net/http"

	"github.com/cloo-solutions/newsrag/internal/api"
	"github.com/cloo-solutions/newsrag/internal/api/handlers"
	"github.com/cloo-solutions/newsrag/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	// AuthValidator guards every route except /health; nil leaves the API open
	AuthValidator middleware.TokenValidator
	QueryHandler  *handlers.QueryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.JSONBody(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.BearerAuth(cfg.AuthValidator))
		}

		r.Get("/index", cfg.QueryHandler.Status)
		r.Post("/query", cfg.QueryHandler.Ask)

		r.Route("/reports", func(r chi.Router) {
			r.Post("/outlook", cfg.QueryHandler.Outlook)
			r.Post("/competitor", cfg.QueryHandler.Competitor)
		})
	})

	return r
}
