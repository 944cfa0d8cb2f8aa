package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetricsRecordsOperationsAndRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.ObserveOperation("consume", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveOperation("consume", OutcomeInsufficientStock, 5*time.Millisecond)
	m.IncRetry("consume")
	m.IncRetry("consume")
	m.SetDriftingKeys(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	retries, err := fetchCounterValue(mfs, "ledger_retries_total", "op", "consume")
	require.NoError(t, err)
	require.Equal(t, float64(2), retries)

	ops := findMetricFamily(mfs, "ledger_operations_total")
	require.NotNil(t, ops)
	require.Len(t, ops.GetMetric(), 2)
	for _, metric := range ops.GetMetric() {
		require.True(t, matchesLabel(metric.GetLabel(), "op", "consume"))
		require.Equal(t, float64(1), metric.GetCounter().GetValue())
	}

	sum, err := fetchHistogramSum(mfs, "ledger_operation_duration_seconds", "op", "consume")
	require.NoError(t, err)
	require.InDelta(t, 0.025, sum, 1e-9)

	drift := findMetricFamily(mfs, "ledger_reconcile_drifting_keys")
	require.NotNil(t, drift)
	require.Equal(t, float64(3), drift.GetMetric()[0].GetGauge().GetValue())
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.ObserveOperation("receive", OutcomeSuccess, time.Millisecond)
	m.IncRetry("receive")
	m.SetDriftingKeys(1)

	unregistered := NewLedgerMetrics(nil)
	unregistered.ObserveOperation("receive", OutcomeError, time.Millisecond)
	unregistered.SetDriftingKeys(0)
}
