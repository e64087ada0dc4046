package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the app-level collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	authOps  *prometheus.CounterVec
}

// NewMetrics builds a registry with Go/process collectors plus the HTTP
// counters. wsConnections reports the live websocket count (registry
// length) on scrape.
func NewMetrics(wsConnections func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, path and status class.",
		}, []string{"method", "path", "class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ripple",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth lifecycle operations by outcome.",
		}, []string{"op", "result"}),
	}
	reg.MustRegister(m.requests, m.latency, m.authOps)

	if wsConnections != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ripple",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Currently connected websocket clients.",
		}, wsConnections))
	}

	return m
}

// ObserveAuth counts one auth lifecycle operation (login, refresh, ...)
// with its outcome.
func (m *Metrics) ObserveAuth(op, result string) {
	m.authOps.WithLabelValues(op, result).Inc()
}

// Handler returns the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WithRequestMetrics counts and times every request. The path label is
// the matched mux pattern; requests that match no pattern (scanners,
// typos) share one "unmatched" bucket so label cardinality stays bounded.
func (m *Metrics) WithRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		next.ServeHTTP(lrw, r)

		// ServeMux fills r.Pattern during routing, so it is readable here.
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}

		m.requests.WithLabelValues(r.Method, pattern, statusClass(lrw.status)).Inc()
		m.latency.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}
