package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ledger operation outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeValidation        = "validation"
	OutcomeNotFound          = "not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeError             = "error"
)

// LedgerMetrics records inventory ledger activity.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	retries    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	drifting   prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by outcome.",
	}, []string{"op", "outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_retries_total",
		Help: "Ledger transactions retried after a transient conflict.",
	}, []string{"op"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Duration of ledger operations including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	drifting := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_reconcile_drifting_keys",
		Help: "Stocking keys whose balance disagrees with lots or mutations.",
	})
	reg.MustRegister(operations, retries, duration, drifting)
	return &LedgerMetrics{
		operations: operations,
		retries:    retries,
		duration:   duration,
		drifting:   drifting,
	}
}

// ObserveOperation records one finished ledger operation.
func (l *LedgerMetrics) ObserveOperation(op, outcome string, duration time.Duration) {
	if l == nil || l.operations == nil {
		return
	}
	op = normalizeLabel(op)
	l.operations.WithLabelValues(op, outcome).Inc()
	l.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncRetry counts a whole-transaction retry.
func (l *LedgerMetrics) IncRetry(op string) {
	if l == nil || l.retries == nil {
		return
	}
	l.retries.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetDriftingKeys publishes the latest reconciliation result.
func (l *LedgerMetrics) SetDriftingKeys(n int) {
	if l == nil || l.drifting == nil {
		return
	}
	l.drifting.Set(float64(n))
}
