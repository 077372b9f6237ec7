package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	requestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Business metrics — exported for use by the routing engine and handlers
	RoutesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zip_router_routes_total",
			Help: "Total routing decisions by chosen tier and status",
		},
		[]string{"tier", "status"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zip_router_fallbacks_total",
			Help: "Total calls routed to a fallback tier, by original tier",
		},
		[]string{"original_tier"},
	)

	UnroutedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zip_router_unrouted_total",
			Help: "Total call events whose ZIP is not in any tier",
		},
	)

	RateLimitOverridesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zip_router_rate_limit_overrides_total",
			Help: "Calls committed to a tier past its hourly cap after fallback chain exhaustion",
		},
		[]string{"tier"},
	)

	BidRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zip_router_bid_requests_total",
			Help: "Outbound bid requests by offer and result",
		},
		[]string{"offer", "result"},
	)

	ZipIndexSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zip_router_zip_index_size",
			Help: "ZIP codes loaded per tier",
		},
		[]string{"tier"},
	)

	ZipIndexLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zip_router_zip_index_loads_total",
			Help: "ZIP dataset load attempts by result",
		},
		[]string{"result"},
	)

	PanicsRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zip_router_panics_recovered_total",
			Help: "Total number of recovered panics",
		},
	)
)

// Metrics returns a middleware that collects Prometheus metrics
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		status := strconv.Itoa(wrapped.statusCode)

		// Use Chi route pattern to avoid cardinality explosion from dynamic path segments
		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		// Normalize trailing slashes
		endpoint = strings.TrimRight(endpoint, "/")
		if endpoint == "" {
			endpoint = "/"
		}

		// Record metrics
		requestDuration.WithLabelValues(r.Method, endpoint, status).Observe(duration.Seconds())
		requestCount.WithLabelValues(r.Method, endpoint, status).Inc()
	})
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
