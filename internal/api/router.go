package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"sage.app/companion/internal/config"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Local stand-in for the identity provider
		if config.AppConfig.DevTokenEndpoint {
			r.Post("/token", apiHandler.TokenHandler)
		}

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Chat routes
			r.Post("/chat/send", apiHandler.SendMessageHandler)
			r.Get("/chat/history", apiHandler.GetHistoryHandler)
			r.Delete("/chat/history", apiHandler.ClearHistoryHandler)
			r.Get("/sessions", apiHandler.ListSessionsHandler)

			// Chart routes
			r.Post("/chart/generate", apiHandler.GenerateChartHandler)
			r.Get("/chart", apiHandler.GetChartHandler)

			// Settings (read-only; a separate flow owns writes)
			r.Get("/settings", apiHandler.GetSettingsHandler)
		})
	})

	return r
}
