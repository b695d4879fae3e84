package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: how many renders were served from the cache.
	RenderCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "render_cache_hits_total",
			Help: "Total number of render cache hits.",
		},
	)

	RenderCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "render_cache_misses_total",
			Help: "Total number of render cache misses.",
		},
	)

	RenderCacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "render_cache_evictions_total",
			Help: "Expired render cache entries removed by sweeps.",
		},
	)

	// Callers that waited on another request's in-flight compile.
	RenderSingleflightSharedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "render_singleflight_shared_total",
			Help: "Renders answered by an in-flight compile of the same content.",
		},
	)

	RenderCompilationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_compilations_total",
			Help: "Compilations by outcome (success or failure kind).",
		},
		[]string{"outcome"},
	)

	// Histogram: full compile + convert wall time in seconds.
	RenderCompileDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_compile_duration_seconds",
			Help:    "Wall time of LaTeX compile and conversion in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		RenderCacheHitsTotal,
		RenderCacheMissesTotal,
		RenderCacheEvictionsTotal,
		RenderSingleflightSharedTotal,
		RenderCompilationsTotal,
		RenderCompileDurationSeconds,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()

		GatewayLatencySeconds.
			WithLabelValues(routePattern(r), r.Method, strconv.Itoa(rec.statusCode)).
			Observe(duration)
	})
}

// routePattern keeps label cardinality bounded by using the matched chi route.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
