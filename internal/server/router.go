// Package server assembles the HTTP router: auth routes, the protected
// session-management group, health, and metrics.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokentrail/internal/auth"
	"tokentrail/internal/security"
	"tokentrail/internal/server/middleware"
)

var startedAt = time.Now()

// NewRouter wires the full HTTP surface. corsOrigin is the single allowed
// browser origin; credentials are allowed so the refresh cookie flows.
func NewRouter(h *auth.Handler, tokens *security.TokenProvider, corsOrigin string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/signin", h.Signin)
		r.Post("/refresh", h.Refresh)
		r.Post("/signout", h.Signout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens))
			r.Get("/sessions", h.Sessions)
			r.Post("/signout-all", h.SignoutAll)
		})
	})

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(notFound)

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": now.Sub(startedAt).Round(time.Second).String(),
		"now":    now.UTC().Format(time.RFC3339),
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": "NotFound",
		"path":  r.URL.Path,
	})
}
