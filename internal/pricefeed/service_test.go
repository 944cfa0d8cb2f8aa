package pricefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/redis"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:pricefeed_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.PriceSnapshot{}))
	return conn
}

type fakeCache struct {
	data    map[string]string
	ttl     time.Duration
	gets    int
	failGet error
	failSet error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.gets++
	if f.failGet != nil {
		return "", f.failGet
	}
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.failSet != nil {
		return f.failSet
	}
	f.data[key] = string(value.([]byte))
	f.ttl = ttl
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeCache) PriceSnapshotKey(itemID int64) string {
	return (&redis.Client{}).PriceSnapshotKey(itemID)
}

func newTestService(t *testing.T, conn *gorm.DB, cache Cache) Service {
	t.Helper()
	params := ServiceParams{
		Repository: NewRepository(conn),
		CacheTTL:   time.Minute,
		Logger:     logger.Nop(),
		Now:        func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) },
	}
	if cache != nil {
		params.Cache = cache
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func price(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func intp(v int) *int { return &v }

func TestUpsertThenGet(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{ItemID: 10, Trend: price("12.50"), DemandRank: intp(120), Notable: true})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 10)
	require.NoError(t, err)
	assert.True(t, got.Trend.Decimal.Equal(decimal.RequireFromString("12.5")))
	assert.False(t, got.FoilTrend.Valid)
	require.NotNil(t, got.DemandRank)
	assert.Equal(t, 120, *got.DemandRank)
	assert.True(t, got.Notable)

	_, err = svc.Upsert(ctx, UpsertInput{ItemID: 10, Trend: price("14"), FoilTrend: price("30")})
	require.NoError(t, err)

	got, err = svc.Get(ctx, 10)
	require.NoError(t, err)
	assert.True(t, got.Trend.Decimal.Equal(decimal.NewFromInt(14)))
	assert.True(t, got.FoilTrend.Valid)
	assert.Nil(t, got.DemandRank, "upsert replaces the whole snapshot")
	assert.False(t, got.Notable)

	var count int64
	require.NoError(t, conn.Model(&models.PriceSnapshot{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetMissingItem(t *testing.T) {
	svc := newTestService(t, newTestDB(t), nil)

	_, err := svc.Get(context.Background(), 77)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Get(context.Background(), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetReadsThroughCache(t *testing.T) {
	conn := newTestDB(t)
	cache := newFakeCache()
	svc := newTestService(t, conn, cache)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{ItemID: 5, Trend: price("3.10")})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 5)
	require.NoError(t, err)
	require.Contains(t, cache.data, "bb:price_snapshot:5")
	assert.Equal(t, time.Minute, cache.ttl)

	// served from cache even once the row is gone
	require.NoError(t, conn.Where("item_id = ?", 5).Delete(&models.PriceSnapshot{}).Error)
	got, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.Trend.Decimal.Equal(decimal.RequireFromString("3.1")))
}

func TestUpsertEvictsCache(t *testing.T) {
	conn := newTestDB(t)
	cache := newFakeCache()
	svc := newTestService(t, conn, cache)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{ItemID: 5, Trend: price("3")})
	require.NoError(t, err)
	_, err = svc.Get(ctx, 5)
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, UpsertInput{ItemID: 5, Trend: price("4")})
	require.NoError(t, err)
	assert.NotContains(t, cache.data, "bb:price_snapshot:5")

	got, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.Trend.Decimal.Equal(decimal.NewFromInt(4)))
}

func TestCacheFailuresFallBackToDatabase(t *testing.T) {
	conn := newTestDB(t)
	cache := newFakeCache()
	cache.failGet = errors.New("connection refused")
	cache.failSet = errors.New("connection refused")
	svc := newTestService(t, conn, cache)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{ItemID: 9, Trend: price("1")})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.ItemID)
	assert.Equal(t, 1, cache.gets)
}

func TestUpsertValidation(t *testing.T) {
	svc := newTestService(t, newTestDB(t), nil)
	cases := map[string]UpsertInput{
		"missing item":    {Trend: price("1")},
		"negative trend":  {ItemID: 1, Trend: price("-1")},
		"negative foil":   {ItemID: 1, FoilTrend: price("-0.01")},
		"negative volume": {ItemID: 1, VolumeMetric: price("-2")},
		"zero rank":       {ItemID: 1, DemandRank: intp(0)},
		"negative sales":  {ItemID: 1, RecentSales: intp(-1)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}
