package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())
}

func TestRegister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_component_operations_total",
		Help: "Test counter",
	})

	err := registry.Register("testcomp", "operations", counter)
	require.NoError(t, err)

	counter.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}

func TestRegisterDuplicateName(t *testing.T) {
	registry := NewMetricsRegistry()

	c1 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_metric_total",
		Help: "first",
	})
	c2 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "other_metric_total",
		Help: "second",
	})

	require.NoError(t, registry.Register("comp", "dup", c1))

	err := registry.Register("comp", "dup", c2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterPrometheusConflict(t *testing.T) {
	registry := NewMetricsRegistry()

	c1 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_total",
		Help: "conflict",
	})
	c2 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_total",
		Help: "conflict",
	})

	require.NoError(t, registry.Register("comp", "first", c1))

	err := registry.Register("comp", "second", c2)
	require.Error(t, err)
}

func TestRecordSearch(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordSearch("local", "ok", 5*time.Millisecond)
	m.RecordSearch("local", "ok", 7*time.Millisecond)
	m.RecordSearch("direct", "error", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("local", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("direct", "error")))
}

func TestSetReady(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.SetReady(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineReady))

	m.SetReady(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EngineReady))
}

func TestSetHealth(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.SetHealth("engine", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthStatus.WithLabelValues("engine")))

	m.SetHealth("engine", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HealthStatus.WithLabelValues("engine")))
}

func TestRecordError(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordError("vectordb")
	m.RecordError("vectordb")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("vectordb")))
}
