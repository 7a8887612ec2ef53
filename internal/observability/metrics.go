package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service. It also implements
// the document.Recorder interface for posting-level counters.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	postingsTotal   *prometheus.CounterVec
	reversalsTotal  *prometheus.CounterVec
	fxOverrides     prometheus.Counter
	postingFailures *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cariledger_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cariledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cariledger_postings_total",
		Help: "Documents posted by direction and document type.",
	}, []string{"direction", "doc_type"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cariledger_reversals_total",
		Help: "Documents reversed by direction.",
	}, []string{"direction"})
	fxOverrides := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cariledger_fx_overrides_total",
		Help: "Postings that overrode a locked exchange rate.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cariledger_posting_failures_total",
		Help: "Failed posting attempts by error code.",
	}, []string{"code"})
	registry.MustRegister(requests, duration, postings, reversals, fxOverrides, failures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postingsTotal:   postings,
		reversalsTotal:  reversals,
		fxOverrides:     fxOverrides,
		postingFailures: failures,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// PostingRecorded counts a successful document posting.
func (m *Metrics) PostingRecorded(direction, docType string) {
	if m != nil {
		m.postingsTotal.WithLabelValues(direction, docType).Inc()
	}
}

// ReversalRecorded counts a successful document reversal.
func (m *Metrics) ReversalRecorded(direction string) {
	if m != nil {
		m.reversalsTotal.WithLabelValues(direction).Inc()
	}
}

// FxOverrideRecorded counts a posting that used an FX rate override.
func (m *Metrics) FxOverrideRecorded() {
	if m != nil {
		m.fxOverrides.Inc()
	}
}

// PostingFailed counts a failed posting attempt by error code.
func (m *Metrics) PostingFailed(code string) {
	if m != nil {
		m.postingFailures.WithLabelValues(code).Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
