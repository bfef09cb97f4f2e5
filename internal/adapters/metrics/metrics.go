// Package metrics exposes Prometheus counters for requests, store queries,
// guard decisions and auth events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loyaltyloop"

// unmatchedRoute labels 404s so scanners cannot grow label cardinality.
const unmatchedRoute = "unmatched"

// Metrics owns a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	queries   *prometheus.HistogramVec
	guard     *prometheus.CounterVec
	auth      *prometheus.CounterVec
	workspace prometheus.GaugeFunc
}

// New registers every collector. liveWorkspaces may be nil.
func New(liveWorkspaces func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "SQLite statement latency by statement label.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"statement"}),
		guard: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard outcomes.",
		}, []string{"decision"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Session operations by outcome.",
		}, []string{"op", "outcome"}),
	}
	if liveWorkspaces == nil {
		liveWorkspaces = func() int { return 0 }
	}
	m.workspace = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workspaces",
		Help:      "Live device workspaces.",
	}, func() float64 { return float64(liveWorkspaces()) })

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.queries, m.guard, m.auth, m.workspace,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if status == http.StatusNotFound {
		route = unmatchedRoute
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveQuery records one store statement. It matches storage.QueryObserver.
func (m *Metrics) ObserveQuery(statement string, d time.Duration) {
	m.queries.WithLabelValues(statement).Observe(d.Seconds())
}

// GuardDecision counts one guard outcome such as "render" or "redirect".
func (m *Metrics) GuardDecision(decision string) {
	m.guard.WithLabelValues(decision).Inc()
}

// AuthEvent counts one session operation.
func (m *Metrics) AuthEvent(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.auth.WithLabelValues(op, outcome).Inc()
}
