package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/buyback-backend/internal/ledger"
	"github.com/angelmondragon/buyback-backend/pkg/db"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/enums"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/metrics"
	"github.com/angelmondragon/buyback-backend/pkg/migrate"
)

func newLedgerFixture(t *testing.T) (*gorm.DB, ledger.Service, *prometheus.Registry, *metrics.LedgerMetrics) {
	t.Helper()
	dsn := "file:cron_ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))

	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)
	svc, err := ledger.NewService(ledger.ServiceParams{
		Store:          db.Wrap(conn),
		Logger:         logger.Nop(),
		Metrics:        m,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	})
	require.NoError(t, err)
	return conn, svc, reg, m
}

func TestLedgerReconcileJobOnRealLedger(t *testing.T) {
	conn, svc, reg, m := newLedgerFixture(t)
	ctx := context.Background()
	key := models.StockKey{ItemID: 4242, Condition: enums.CardConditionNearMint, Language: "EN"}

	_, err := svc.Receive(ctx, ledger.ReceiveInput{
		Key:        key,
		Qty:        5,
		UnitCost:   decimal.RequireFromString("1.25"),
		SourceCode: "PO-1",
		SourceDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.Consume(ctx, ledger.ConsumeInput{Key: key, Qty: 3, Reason: "orders"})
	require.NoError(t, err)

	job, err := NewLedgerReconcileJob(LedgerReconcileJobParams{Logger: logger.Nop(), Ledger: svc, Metrics: m})
	require.NoError(t, err)

	require.NoError(t, job.Run(ctx))
	assert.Zero(t, driftGauge(t, reg))

	require.NoError(t, conn.Model(&models.StockBalance{}).Scopes(key.Scope()).Update("qty_on_hand", 9).Error)

	assert.Error(t, job.Run(ctx))
	assert.EqualValues(t, 1, driftGauge(t, reg))
}
