package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of a counter family whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	require.NoError(t, metrics.Track("inventory:sync").End(nil))
	err := errors.New("boom")
	require.ErrorIs(t, metrics.Track("inventory:sync").End(err), err)

	require.Equal(t, 1.0, counterValue(t, reg, "returnsdesk_jobs_total", map[string]string{"job": "inventory:sync", "status": "success"}))
	require.Equal(t, 1.0, counterValue(t, reg, "returnsdesk_jobs_total", map[string]string{"job": "inventory:sync", "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, reg, "returnsdesk_jobs_failures_total", map[string]string{"job": "inventory:sync"}))
}

func TestCountersIgnoreNonPositive(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.AddSynced("ok", 3)
	metrics.AddSynced("ok", 0)
	metrics.AddPruned(-1)
	metrics.AddPruned(4)

	require.Equal(t, 3.0, counterValue(t, reg, "returnsdesk_inventory_sync_updates_total", map[string]string{"outcome": "ok"}))
	require.Equal(t, 4.0, counterValue(t, reg, "returnsdesk_audit_pruned_total", nil))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.AddSynced("ok", 1)
	metrics.AddPruned(1)
	require.NoError(t, metrics.Track("audit:prune").End(nil))
}
