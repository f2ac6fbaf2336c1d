/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the costing frontend

ROUTE GROUPS:
  /api/profiles/*       Batch profiles
  /api/cost-runs/*      Pipeline runs and run history
  /api/scenarios/*      What-if diffs
  /api/demos/*          Demo batches
  /                     Endpoint index

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.CreateProfile)
			r.Get("/{name}", h.GetProfile)
		})

		r.Route("/cost-runs", func(r chi.Router) {
			r.Get("/", h.ListCostRuns)
			r.Post("/", h.CreateCostRun)
			r.Get("/{id}", h.GetCostRun)
		})

		r.Post("/scenarios/diff", h.DiffScenario)

		r.Route("/demos", func(r chi.Router) {
			r.Get("/", h.ListDemos)
			r.Post("/{id}/run", h.RunDemo)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Joint Cost Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Joint Cost Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/profiles">/api/profiles</a> - Batch profiles</li>
<li><a href="/api/cost-runs">/api/cost-runs</a> - Cost run history</li>
<li><a href="/api/demos">/api/demos</a> - Demo batches (POST /api/demos/{id}/run)</li>
<li>POST /api/scenarios/diff - What-if diff</li>
</ul>
</body>
</html>`))
	})

	return r
}
