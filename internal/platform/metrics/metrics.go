// Package metrics exposes Prometheus collectors for HTTP traffic, checkouts, and order transitions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfmarket/api/internal/services"
)

const namespace = "shelfmarket"

// Registry owns every collector the API exports. Each instance has its own prometheus registry so
// tests can build as many as they like.
type Registry struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	checkouts *prometheus.CounterVec
	failures  *prometheus.CounterVec
	orders    *prometheus.CounterVec
	statuses  *prometheus.CounterVec
	breaker   *prometheus.GaugeVec
}

// New registers the API collectors plus the Go runtime and process collectors.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "completed_total",
			Help:      "Checkouts that persisted orders, by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "failed_total",
			Help:      "Rejected checkouts, by kind and reason.",
		}, []string{"kind", "reason"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_created_total",
			Help:      "Orders created by checkouts, by kind.",
		}, []string{"kind"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Applied order status transitions.",
		}, []string{"actor", "from", "to"}),
		breaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "breaker_state",
			Help:      "Catalog lookup breaker state (1 for the current state).",
		}, []string{"state"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.latency,
		r.checkouts,
		r.failures,
		r.orders,
		r.statuses,
		r.breaker,
	)
	r.BreakerStateChanged("", "closed")
	return r
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// CheckoutSucceeded implements services.OrderMetrics.
func (r *Registry) CheckoutSucceeded(kind string, orders int) {
	r.checkouts.WithLabelValues(kind).Inc()
	r.orders.WithLabelValues(kind).Add(float64(orders))
}

// CheckoutFailed implements services.OrderMetrics.
func (r *Registry) CheckoutFailed(kind string, reason string) {
	r.failures.WithLabelValues(kind, reason).Inc()
}

// StatusChanged implements services.OrderMetrics.
func (r *Registry) StatusChanged(actor string, from, to services.OrderStatus) {
	r.statuses.WithLabelValues(actor, string(from), string(to)).Inc()
}

var breakerStates = []string{"closed", "half-open", "open"}

// BreakerStateChanged matches the catalog breaker's state change callback.
func (r *Registry) BreakerStateChanged(_, to string) {
	for _, state := range breakerStates {
		value := 0.0
		if state == to {
			value = 1
		}
		r.breaker.WithLabelValues(state).Set(value)
	}
}

// Middleware records request counts and latency labelled by chi route pattern so path parameters
// do not explode label cardinality.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		r.requests.WithLabelValues(route, req.Method, strconv.Itoa(recorder.status)).Inc()
		r.latency.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

var _ services.OrderMetrics = (*Registry)(nil)
