package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"waba-admin/internal/middleware"
)

// APIHandler serves the dashboard API and lists its paths.
type APIHandler interface {
	http.Handler
	Routes() []string
}

// NewRouter serves the dashboard API under /api next to the operational
// endpoints.
func NewRouter(logger zerolog.Logger, apiHandler APIHandler, deps map[string]Pinger, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics(apiHandler.Routes()))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-Id"},
		ExposedHeaders:   []string{"X-Correlation-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", Health(deps))
	r.Handle("/api/*", apiHandler)

	return r
}
