package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-wide metrics.
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

// Control-plane domain metrics.
var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	sudoSessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sudo_sessions_total",
		Help: "Impersonation tokens issued.",
	})

	organizationsProvisionedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "organizations_provisioned_total",
		Help: "Tenant partitions provisioned (including reactivations).",
	})

	organizationsArchivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "organizations_archived_total",
		Help: "Tenant partitions archived.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginsTotal, sudoSessionsTotal,
		organizationsProvisionedTotal, organizationsArchivedTotal,
	)
}

// RecordLogin counts one login attempt. Outcomes: success, invalid,
// ambiguous, error.
func RecordLogin(outcome string) { loginsTotal.WithLabelValues(outcome).Inc() }

// RecordSudoSession counts one issued impersonation token.
func RecordSudoSession() { sudoSessionsTotal.Inc() }

// RecordOrgProvisioned counts one provisioned partition.
func RecordOrgProvisioned() { organizationsProvisionedTotal.Inc() }

// RecordOrgArchived counts one archived partition.
func RecordOrgArchived() { organizationsArchivedTotal.Inc() }

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
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

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
