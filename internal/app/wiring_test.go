package app

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/buyback-backend/internal/ledger"
	"github.com/angelmondragon/buyback-backend/internal/pricefeed"
	"github.com/angelmondragon/buyback-backend/internal/pricing"
	"github.com/angelmondragon/buyback-backend/internal/quotes"
	"github.com/angelmondragon/buyback-backend/pkg/config"
	"github.com/angelmondragon/buyback-backend/pkg/db"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/enums"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/migrate"
)

func newClient(t *testing.T) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return db.Wrap(conn)
}

func TestNewEngineRejectsMissingPolicyFile(t *testing.T) {
	_, err := NewEngine(config.PricingConfig{PolicyFile: "/does/not/exist.json"})
	require.Error(t, err)

	engine, err := NewEngine(config.PricingConfig{})
	require.NoError(t, err)
	require.NotNil(t, engine)
}

func TestBuildQuotesFromFeedAndLedger(t *testing.T) {
	cfg := &config.Config{
		Ledger: config.LedgerConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond},
		Quotes: config.QuotesConfig{BatchLimit: 10, Concurrency: 2},
	}
	svcs, err := Build(Params{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         newClient(t),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svcs.PriceFeed.Upsert(ctx, pricefeed.UpsertInput{
		ItemID: 4242,
		Trend:  decimal.NewNullDecimal(decimal.RequireFromString("10.00")),
	})
	require.NoError(t, err)

	key := models.StockKey{ItemID: 4242, Condition: enums.CardConditionNearMint, Language: "EN"}
	_, err = svcs.Ledger.Receive(ctx, ledger.ReceiveInput{
		Key:        key,
		Qty:        2,
		UnitCost:   decimal.RequireFromString("5.00"),
		SourceCode: "BB-1",
		SourceDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	result, err := svcs.Quotes.Quote(ctx, quotes.Request{Key: key})
	require.NoError(t, err)
	require.True(t, result.Quote.Allowed)
	require.Equal(t, pricing.ReasonOK, result.Quote.Reason)
}

func TestBuildRequiresInfrastructure(t *testing.T) {
	_, err := Build(Params{})
	require.Error(t, err)
}
