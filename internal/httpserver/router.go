package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"texrender/internal/handlers"
	"texrender/internal/metrics"
	"texrender/internal/middleware"
)

// Options tunes the request middleware.
type Options struct {
	RequestTimeout time.Duration // default: 60s
	MaxBodyBytes   int64         // default: 1 MiB
}

func SetupRouter(
	r *chi.Mux,
	baseLogger *zap.Logger,
	compileHandler *handlers.CompileHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	// routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/compile-latex", compileHandler.CompileLaTeX)
	})

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	r.Handle("/metrics", metrics.Handler())
}
