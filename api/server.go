/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/costs/*          Calculation, copy, and cost record reads
  /api/variances/*      Variance analysis
  /api/reconciliation/* Cross-system reconciliation
  /api/reports/*        Workbook downloads
  /api/explain/*        LLM-drafted commentary
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. The service runs inside the accounting
  network segment; do not expose it publicly as-is.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/costs", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Post("/copy", h.Copy)
			r.Get("/standard/{period}", h.GetStandardCosts)
			r.Get("/crude/{period}", h.GetCrudeStandardCosts)
			r.Get("/allocations/{period}", h.GetAllocations)
		})

		r.Route("/variances", func(r chi.Router) {
			r.Post("/analyze", h.AnalyzeVariances)
			r.Get("/summary/{period}", h.GetVarianceSummary)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", h.RunReconciliation)
			r.Get("/summary/{period}", h.GetReconciliationSummary)
		})

		r.Get("/reports/variance/{period}.xlsx", h.DownloadVarianceReport)
		r.Post("/explain/variance", h.ExplainVariance)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	return r
}
