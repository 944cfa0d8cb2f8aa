package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/buyback-backend/internal/ledger"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/metrics"
)

const ledgerReconcileJobName = "ledger-reconcile"

type ledgerReconciler interface {
	Reconcile(ctx context.Context) (*ledger.Report, error)
}

type LedgerReconcileJobParams struct {
	Logger  *logger.Logger
	Ledger  ledgerReconciler
	Metrics *metrics.LedgerMetrics
}

func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	return &ledgerReconcileJob{
		logg:    params.Logger,
		ledger:  params.Ledger,
		metrics: params.Metrics,
	}, nil
}

type ledgerReconcileJob struct {
	logg    *logger.Logger
	ledger  ledgerReconciler
	metrics *metrics.LedgerMetrics
}

func (j *ledgerReconcileJob) Name() string { return ledgerReconcileJobName }

// Run fails when any key drifts so the job failure counter can page someone.
func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	report, err := j.ledger.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("ledger reconcile: %w", err)
	}
	j.metrics.SetDriftingKeys(report.Drifting)

	var drift error
	for _, row := range report.DriftingKeys() {
		fields := row.Key.Fields()
		fields["on_hand"] = row.OnHand
		fields["lots_remaining"] = row.Remaining
		fields["theoretical"] = row.Theoretical
		fields["drift"] = row.Drift
		fields["mutation_drift"] = row.MutationDrift
		fields["has_balance"] = row.HasBalance
		j.logg.Warn(j.logg.WithFields(ctx, fields), "ledger drift detected")
		drift = multierr.Append(drift, fmt.Errorf("%s: drift %d, mutation drift %d", row.Key, row.Drift, row.MutationDrift))
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"keys":     len(report.Keys),
		"drifting": report.Drifting,
	}), "ledger reconcile complete")
	return drift
}
