package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/veloro-ai/modelrouter/app"
	"github.com/veloro-ai/modelrouter/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Config.Server.WriteTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Catalog introspection is tenant-agnostic
		r.Get("/models", handlers.ListModelsHandler(deps))
		r.Get("/circuits", handlers.ListCircuitsHandler(deps))

		// Routing pipeline requires a resolved tenant
		r.Group(func(r chi.Router) {
			r.Use(deps.TenantMiddleware.RequireTenant)
			r.Post("/dispatch", handlers.DispatchHandler(deps))
			r.Post("/analyze", handlers.AnalyzeHandler(deps))
			r.Get("/budget", handlers.BudgetHandler(deps))
		})
	})

	return r
}
