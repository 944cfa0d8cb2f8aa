package controllers

import (
	"context"
	"io"

	"github.com/angelmondragon/buyback-backend/internal/ledger"
	"github.com/angelmondragon/buyback-backend/internal/pricefeed"
	"github.com/angelmondragon/buyback-backend/internal/quotes"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fakeLedger struct {
	receiveFn   func(ctx context.Context, input ledger.ReceiveInput) (*models.StockBalance, error)
	consumeFn   func(ctx context.Context, input ledger.ConsumeInput) (*models.StockBalance, error)
	adjustFn    func(ctx context.Context, input ledger.AdjustInput) (*models.StockBalance, error)
	balanceFn   func(ctx context.Context, key models.StockKey) (*models.StockBalance, error)
	lotsFn      func(ctx context.Context, key models.StockKey, includeDepleted bool) ([]models.StockLot, error)
	mutationsFn func(ctx context.Context, key models.StockKey, params pagination.Params) (*ledger.MutationPage, error)
	reconcileFn func(ctx context.Context) (*ledger.Report, error)
}

func (f *fakeLedger) Receive(ctx context.Context, input ledger.ReceiveInput) (*models.StockBalance, error) {
	return f.receiveFn(ctx, input)
}

func (f *fakeLedger) Consume(ctx context.Context, input ledger.ConsumeInput) (*models.StockBalance, error) {
	return f.consumeFn(ctx, input)
}

func (f *fakeLedger) Adjust(ctx context.Context, input ledger.AdjustInput) (*models.StockBalance, error) {
	return f.adjustFn(ctx, input)
}

func (f *fakeLedger) GetBalance(ctx context.Context, key models.StockKey) (*models.StockBalance, error) {
	return f.balanceFn(ctx, key)
}

func (f *fakeLedger) OnHand(ctx context.Context, key models.StockKey) (int, error) {
	b, err := f.balanceFn(ctx, key)
	if err != nil {
		return 0, err
	}
	return b.QtyOnHand, nil
}

func (f *fakeLedger) ListLots(ctx context.Context, key models.StockKey, includeDepleted bool) ([]models.StockLot, error) {
	return f.lotsFn(ctx, key, includeDepleted)
}

func (f *fakeLedger) ListMutations(ctx context.Context, key models.StockKey, params pagination.Params) (*ledger.MutationPage, error) {
	return f.mutationsFn(ctx, key, params)
}

func (f *fakeLedger) Reconcile(ctx context.Context) (*ledger.Report, error) {
	return f.reconcileFn(ctx)
}

type fakeQuotes struct {
	quoteFn func(ctx context.Context, req quotes.Request) (*quotes.Result, error)
	batchFn func(ctx context.Context, reqs []quotes.Request) ([]quotes.Result, error)
}

func (f *fakeQuotes) Quote(ctx context.Context, req quotes.Request) (*quotes.Result, error) {
	return f.quoteFn(ctx, req)
}

func (f *fakeQuotes) QuoteBatch(ctx context.Context, reqs []quotes.Request) ([]quotes.Result, error) {
	return f.batchFn(ctx, reqs)
}

type fakeFeed struct {
	getFn    func(ctx context.Context, itemID int64) (*models.PriceSnapshot, error)
	upsertFn func(ctx context.Context, input pricefeed.UpsertInput) (*models.PriceSnapshot, error)
}

func (f *fakeFeed) Get(ctx context.Context, itemID int64) (*models.PriceSnapshot, error) {
	return f.getFn(ctx, itemID)
}

func (f *fakeFeed) Upsert(ctx context.Context, input pricefeed.UpsertInput) (*models.PriceSnapshot, error) {
	return f.upsertFn(ctx, input)
}
