package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Auth engine metrics.
var (
	authLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	authRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refreshes_total",
			Help: "Refresh token rotations by result.",
		},
		[]string{"result"},
	)

	authDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_authorize_denials_total",
			Help: "Authorization denials by reason.",
		},
		[]string{"reason"},
	)

	authReuseDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_token_reuse_detected_total",
			Help: "Refresh token replay attempts.",
		},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authLogins, authRefreshes, authDenials, authReuseDetected,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records a login attempt outcome ("ok", "failed", "error").
func ObserveLogin(result string) {
	authLogins.WithLabelValues(result).Inc()
}

// ObserveRefresh records a refresh outcome ("ok", "reuse", "failed", "error").
func ObserveRefresh(result string) {
	authRefreshes.WithLabelValues(result).Inc()
}

// ObserveDenial records an authorization denial by reason.
func ObserveDenial(reason string) {
	authDenials.WithLabelValues(reason).Inc()
}

// ObserveTokenReuse records a detected refresh token replay.
func ObserveTokenReuse() {
	authReuseDetected.Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-subject path segments so metric cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	// /v1/auth/subjects/<id>/... → :id
	if len(parts) >= 5 && parts[1] == "v1" && parts[2] == "auth" && parts[3] == "subjects" {
		parts[4] = ":id"
		return strings.Join(parts, "/")
	}
	return path
}

// statusWriter captures the response code for labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
