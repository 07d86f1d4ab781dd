package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecording(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordCall("orders", "success", 12*time.Millisecond)
	m.RecordCall("orders", "server", 30*time.Millisecond)
	m.RecordRetry("orders")
	m.RecordBreakerTransition("orders", "closed", "open")
	m.RecordLookup("orders", "hit")
	m.RecordRefreshFailure()
	m.RecordHealthCheck("db", 5*time.Millisecond, false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CallsTotal.WithLabelValues("orders", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CallsTotal.WithLabelValues("orders", "server")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetryAttempts.WithLabelValues("orders")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("orders", "closed", "open")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RegistryLookups.WithLabelValues("orders", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RegistryRefreshFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HealthCheckFailures.WithLabelValues("db")))
}

func TestBreakerStateGauge(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordBreakerTransition("orders", "closed", "open")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BreakerState.WithLabelValues("orders")))

	m.RecordBreakerTransition("orders", "open", "half-open")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerState.WithLabelValues("orders")))

	m.RecordBreakerTransition("orders", "half-open", "closed")
	assert.Equal(t, float64(0), testutil.ToFloat64(m.BreakerState.WithLabelValues("orders")))
}
