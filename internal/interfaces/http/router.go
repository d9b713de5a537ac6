// Package http wires the HTTP API: router, middleware, and server lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/prometheus"
	"github.com/tracefold/anonymizer/internal/interfaces/http/handlers"
	"github.com/tracefold/anonymizer/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies for the
// complete route tree. Nil handlers leave their routes unregistered, which
// keeps partial deployments (no chat backend, for instance) serving the
// rest of the API.
type RouterConfig struct {
	AnonymizeHandler *handlers.AnonymizeHandler
	ChatHandler      *handlers.ChatHandler
	HealthHandler    *handlers.HealthHandler

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector

	CORS      *middleware.CORSConfig
	RateLimit *middleware.RateLimitConfig
}

// NewRouter constructs the HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(*cfg.RateLimit))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.AnonymizeHandler != nil {
			api.Post("/anonymize", cfg.AnonymizeHandler.Anonymize)
			api.Post("/anonymize/batch", cfg.AnonymizeHandler.AnonymizeBatch)
		}
		if cfg.ChatHandler != nil {
			api.Post("/chat", cfg.ChatHandler.Chat)
			api.Post("/intent", cfg.ChatHandler.PredictIntent)
		}
	})

	return r
}
