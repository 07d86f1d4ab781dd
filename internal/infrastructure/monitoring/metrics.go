package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the fabric.
type Metrics struct {
	// Call path metrics
	CallsTotal    *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	RetryAttempts *prometheus.CounterVec

	// Breaker metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec

	// Registry metrics
	RegistryLookups         *prometheus.CounterVec
	RegistryRefreshFailures prometheus.Counter

	// Health metrics
	HealthCheckDuration *prometheus.HistogramVec
	HealthCheckFailures *prometheus.CounterVec

	// Ops HTTP server metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	startTime time.Time
	Uptime    prometheus.Gauge
}

// NewMetrics creates a metrics collector registered on the default
// Prometheus registerer. Call it once per process.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on a specific registerer,
// used by tests to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabric_calls_total",
				Help: "Total number of fabric calls by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fabric_call_duration_seconds",
				Help:    "End-to-end fabric call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service"},
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabric_retry_attempts_total",
				Help: "Total number of retry attempts beyond the first try",
			},
			[]string{"service"},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabric_breaker_transitions_total",
				Help: "Circuit breaker phase transitions",
			},
			[]string{"service", "from", "to"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fabric_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),

		RegistryLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabric_registry_lookups_total",
				Help: "Registry resolutions by service and result (hit, refresh, stale, error)",
			},
			[]string{"service", "result"},
		),
		RegistryRefreshFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fabric_registry_refresh_failures_total",
				Help: "Background registry refresh failures (stale cache retained)",
			},
		),

		HealthCheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fabric_health_check_duration_seconds",
				Help:    "Health check latency in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"check"},
		),
		HealthCheckFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabric_health_check_failures_total",
				Help: "Health check failures by check name",
			},
			[]string{"check"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabric_http_requests_total",
				Help: "Total number of ops HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fabric_http_request_duration_seconds",
				Help:    "Ops HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fabric_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}
}

// RecordCall records one completed fabric call.
func (m *Metrics) RecordCall(service, outcome string, duration time.Duration) {
	m.CallsTotal.WithLabelValues(service, outcome).Inc()
	m.CallDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt beyond the first try.
func (m *Metrics) RecordRetry(service string) {
	m.RetryAttempts.WithLabelValues(service).Inc()
}

// RecordBreakerTransition records a breaker phase change and updates the
// state gauge.
func (m *Metrics) RecordBreakerTransition(service, from, to string) {
	m.BreakerTransitions.WithLabelValues(service, from, to).Inc()
	m.BreakerState.WithLabelValues(service).Set(stateValue(to))
}

// RecordLookup records a registry resolution result.
func (m *Metrics) RecordLookup(service, result string) {
	m.RegistryLookups.WithLabelValues(service, result).Inc()
}

// RecordRefreshFailure records a failed background refresh.
func (m *Metrics) RecordRefreshFailure() {
	m.RegistryRefreshFailures.Inc()
}

// RecordHealthCheck records one health check execution.
func (m *Metrics) RecordHealthCheck(check string, duration time.Duration, healthy bool) {
	m.HealthCheckDuration.WithLabelValues(check).Observe(duration.Seconds())
	if !healthy {
		m.HealthCheckFailures.WithLabelValues(check).Inc()
	}
}

// RecordHTTPRequest records one ops server request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

func stateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
