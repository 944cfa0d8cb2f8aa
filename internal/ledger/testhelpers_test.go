package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/buyback-backend/pkg/db"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/enums"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/metrics"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&models.StockBalance{},
		&models.StockLot{},
		&models.StockMutation{},
	))
	return conn
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, conn *gorm.DB, m *metrics.LedgerMetrics) *service {
	t.Helper()
	return newTestServiceWithStore(t, db.Wrap(conn), m)
}

func newTestServiceWithStore(t *testing.T, store Store, m *metrics.LedgerMetrics) *service {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Store:          store,
		Logger:         logger.Nop(),
		Metrics:        m,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
		Now:            clock.Now,
	})
	require.NoError(t, err)
	return svc.(*service)
}

func testKey() models.StockKey {
	return models.StockKey{ItemID: 4242, IsFoil: false, Condition: enums.CardConditionNearMint, Language: "EN"}
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func receiveInput(key models.StockKey, qty int, cost string, source string, sourceDate time.Time) ReceiveInput {
	return ReceiveInput{
		Key:        key,
		Qty:        qty,
		UnitCost:   dec(cost),
		SourceCode: source,
		SourceDate: sourceDate,
	}
}

func assertInvariant(t *testing.T, conn *gorm.DB, key models.StockKey) {
	t.Helper()
	var balance models.StockBalance
	require.NoError(t, conn.Scopes(key.Scope()).Take(&balance).Error)
	var lots []models.StockLot
	require.NoError(t, conn.Scopes(key.Scope()).Find(&lots).Error)
	sum := 0
	for _, lot := range lots {
		require.GreaterOrEqual(t, lot.QtyRemaining, 0)
		require.LessOrEqual(t, lot.QtyRemaining, lot.QtyIn)
		sum += lot.QtyRemaining
	}
	require.Equal(t, sum, balance.QtyOnHand, "qty_on_hand must equal lots remaining")
}

func newLotID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
