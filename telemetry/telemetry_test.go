package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncCommandDispatched("pump1")
	collector.IncCommandRejected("emergency_stop")
	collector.IncAlarmAcknowledged()
	collector.IncEmergencyStop()
	collector.SetActiveAlarms(3)
}

func TestPrometheusCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(registry)
	require.NoError(t, err)
	require.NotNil(t, collector)

	collector.IncCommandDispatched("pump1")
	collector.IncCommandDispatched("pump1")
	collector.IncCommandRejected("permission_denied")
	collector.IncAlarmAcknowledged()
	collector.IncEmergencyStop()
	collector.SetActiveAlarms(4)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.dispatched.WithLabelValues("pump1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.rejected.WithLabelValues("permission_denied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.acknowledged))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.stops))
	assert.Equal(t, float64(4), testutil.ToFloat64(collector.activeAlarms))
}

func TestPrometheusCollectorReuse(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewPrometheusCollector(registry)
	require.NoError(t, err)
	second, err := NewPrometheusCollector(registry)
	require.NoError(t, err)

	// The package caches registered collectors, so both handles share state.
	before := testutil.ToFloat64(first.stops)
	first.IncEmergencyStop()
	second.IncEmergencyStop()
	assert.Equal(t, before+2, testutil.ToFloat64(first.stops))
	assert.Equal(t, testutil.ToFloat64(first.stops), testutil.ToFloat64(second.stops))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *PrometheusCollector
	collector.IncCommandDispatched("pump1")
	collector.IncCommandRejected("read_only")
	collector.IncAlarmAcknowledged()
	collector.IncEmergencyStop()
	collector.SetActiveAlarms(1)
}
