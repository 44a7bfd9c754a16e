package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	acquisitionsTotal   *prometheus.CounterVec
	acquisitionDuration *prometheus.HistogramVec
	sessionsActive      prometheus.Gauge
	runsRejected        *prometheus.CounterVec
	insightsTotal       *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.acquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investeai_acquisitions_total",
			Help: "Total number of result acquisitions by source and reason",
		},
		[]string{"source", "reason"},
	)
	r.acquisitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "investeai_acquisition_duration_seconds",
			Help:    "Result acquisition duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)
	r.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "investeai_sessions_active",
			Help: "Number of live dashboard sessions",
		},
	)
	r.runsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investeai_runs_rejected_total",
			Help: "Re-run requests refused by the session guard",
		},
		[]string{"reason"},
	)
	r.insightsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investeai_insights_total",
			Help: "Total number of LLM insight requests",
		},
		[]string{"provider", "status"},
	)

	reg.MustRegister(r.acquisitionsTotal)
	reg.MustRegister(r.acquisitionDuration)
	reg.MustRegister(r.sessionsActive)
	reg.MustRegister(r.runsRejected)
	reg.MustRegister(r.insightsTotal)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, route string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, route, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordAcquisition records one acquisition. Reason is "ok" on the
// success path and the failure code otherwise.
func (r *Registry) RecordAcquisition(source, reason string, seconds float64) {
	r.acquisitionsTotal.WithLabelValues(source, reason).Inc()
	r.acquisitionDuration.WithLabelValues(source).Observe(seconds)
}

// SetSessionsActive sets the live session count.
func (r *Registry) SetSessionsActive(n int) {
	r.sessionsActive.Set(float64(n))
}

// RecordRunRejected counts a refused re-run ("busy" or "rate_limited").
func (r *Registry) RecordRunRejected(reason string) {
	r.runsRejected.WithLabelValues(reason).Inc()
}

// RecordInsight records an LLM insight request.
func (r *Registry) RecordInsight(provider, status string) {
	r.insightsTotal.WithLabelValues(provider, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
