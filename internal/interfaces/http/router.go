package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/prometheus"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/http/handlers"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/http/middleware"
)

// DefaultMetricsPath is where Prometheus scrapes when no path is configured.
const DefaultMetricsPath = "/metrics"

// RouterConfig aggregates the handlers and middleware that make up the
// route tree. Nil entries are skipped.
type RouterConfig struct {
	ValuationHandler *handlers.ValuationHandler
	SessionHandler   *handlers.SessionHandler
	HealthHandler    *handlers.HealthHandler
	// Web serves the HTML calculator at the root.
	Web http.Handler

	Auth      *middleware.AuthMiddleware
	CORS      *middleware.CORSMiddleware
	Logging   *middleware.LoggingMiddleware
	RateLimit func(http.Handler) http.Handler

	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string

	Logger logging.Logger
}

// NewRouter builds the complete route tree: health probes and metrics,
// the JSON API under /api/v1 and the calculator pages.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logging != nil {
		r.Use(cfg.Logging.Handler)
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.CORS != nil {
		r.Use(cfg.CORS.Handler)
	}
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit)
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.Auth != nil {
			api.Use(cfg.Auth.Handler)
		}
		registerValuationRoutes(api, cfg.ValuationHandler)
		registerSessionRoutes(api, cfg.SessionHandler)
	})

	if cfg.Web != nil {
		r.Mount("/", cfg.Web)
	}

	return r
}

// registerValuationRoutes mounts the stateless calculators.
func registerValuationRoutes(r chi.Router, h *handlers.ValuationHandler) {
	if h == nil {
		return
	}
	r.Get("/defaults", h.Defaults)
	r.Post("/npv", h.NPV)
	r.Post("/deal", h.Deal)
	r.Post("/strategy", h.Strategy)
	r.Post("/launch-price", h.LaunchPrice)
	r.Post("/sensitivity", h.Sensitivity)
}

// registerSessionRoutes mounts the stored-form endpoints under /sessions.
func registerSessionRoutes(r chi.Router, h *handlers.SessionHandler) {
	if h == nil {
		return
	}
	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", h.Create)

		sr.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Patch("/", h.Update)
			item.Delete("/", h.Delete)
			item.Post("/reset", h.Reset)
			item.Get("/dashboard", h.Dashboard)
		})
	})
}
