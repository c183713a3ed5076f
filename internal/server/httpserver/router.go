package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/deltamesh-go/internal/core/replication"
	"github.com/yndnr/deltamesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/deltamesh-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Manager serves the session and replication endpoints.
	Manager *replication.DeltaManager

	// Metrics is exposed on /metrics and records request metrics.
	// Optional.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// RateLimit is the per-IP limit in requests/second (0 = unlimited).
	RateLimit int
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := handler.New(cfg.Manager, log)

	// Order: Recover -> RequestID -> AccessLog -> Instrument -> RateLimit -> Handler
	middlewares := []Middleware{
		Recover(log),
		RequestID(log),
		AccessLog(),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, Instrument(cfg.Metrics, h.Route))
	}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}

	mux := http.NewServeMux()
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(log)))
	}
	mux.Handle("/", Chain(h, middlewares...))
	return mux
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit: 1000,
	}
}
