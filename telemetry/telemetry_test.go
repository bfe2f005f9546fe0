package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncTaskQueued("refresh")
	collector.IncTaskDiscarded("refresh")
	collector.IncDeriveError()
	collector.SetManagedSlots(3)
}

func TestPrometheusCollectorRegistersAndReusesCounters(t *testing.T) {
	resetRegisteredMetrics()

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.NotNil(t, collector)

	collector.IncTaskQueued("refresh")

	metric := gatherFamily(t, reg, "srcmodel_update_tasks_queued_total")
	requireCounterValue(t, metric, 1)

	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, collector.tasksQueued, again.tasksQueued)

	again.IncTaskQueued("refresh")

	metric = gatherFamily(t, reg, "srcmodel_update_tasks_queued_total")
	requireCounterValue(t, metric, 2)
}

func TestPrometheusCollectorTracksDiscardsAndErrors(t *testing.T) {
	resetRegisteredMetrics()

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncTaskDiscarded("refresh")
	collector.IncTaskDiscarded("refresh")
	collector.IncDeriveError()
	collector.SetManagedSlots(7)

	requireCounterValue(t, gatherFamily(t, reg, "srcmodel_update_tasks_discarded_total"), 2)
	requireCounterValue(t, gatherFamily(t, reg, "srcmodel_derive_errors_total"), 1)

	gauge := gatherFamily(t, reg, "srcmodel_managed_slots")
	require.Len(t, gauge.Metric, 1)
	require.NotNil(t, gauge.Metric[0].Gauge)
	require.Equal(t, float64(7), gauge.Metric[0].Gauge.GetValue())
}

func resetRegisteredMetrics() {
	taskQueuedCounterLock.Lock()
	taskQueuedCounter = nil
	taskQueuedCounterLock.Unlock()
	taskDiscardedCounterLock.Lock()
	taskDiscardedCounter = nil
	taskDiscardedCounterLock.Unlock()
	deriveErrorCounterLock.Lock()
	deriveErrorCounter = nil
	deriveErrorCounterLock.Unlock()
	managedSlotGaugeLock.Lock()
	managedSlotGauge = nil
	managedSlotGaugeLock.Unlock()
}

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	metrics, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}

func requireCounterValue(t *testing.T, mf *dto.MetricFamily, value float64) {
	t.Helper()
	require.Len(t, mf.Metric, 1)
	require.NotNil(t, mf.Metric[0].Counter)
	require.Equal(t, value, mf.Metric[0].Counter.GetValue())
}
