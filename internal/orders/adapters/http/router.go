package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the endpoints served next to the order routes.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	MetricsPath    string
	MetricsHandler http.Handler
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready          func(ctx context.Context) error
	RequestTimeout time.Duration
}

// NewRouter builds the API router.
func NewRouter(orders *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return WithLogging(next, logger) })
	if cfg.Metrics != nil {
		r.Use(func(next http.Handler) http.Handler { return WithMetrics(next, cfg.Metrics) })
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.MetricsHandler)
	}

	orders.Register(r)

	return r
}
