package quotes

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/buyback-backend/internal/pricing"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
)

const (
	defaultBatchLimit  = 200
	defaultConcurrency = 8
)

// SnapshotSource loads market snapshots.
type SnapshotSource interface {
	Get(ctx context.Context, itemID int64) (*models.PriceSnapshot, error)
}

// StockSource reports how many units of a key we already hold.
type StockSource interface {
	OnHand(ctx context.Context, key models.StockKey) (int, error)
}

// Request asks for the payout of one stocking key.
type Request struct {
	Key models.StockKey `json:"key"`
}

// Result pairs a request with its quote.
type Result struct {
	Key   models.StockKey     `json:"key"`
	Quote pricing.PayoutQuote `json:"quote"`
}

// Service quotes buyback payouts from live market and stock data.
type Service interface {
	Quote(ctx context.Context, req Request) (*Result, error)
	QuoteBatch(ctx context.Context, reqs []Request) ([]Result, error)
}

// ServiceParams wires the quote service.
type ServiceParams struct {
	Engine      *pricing.Engine
	Snapshots   SnapshotSource
	Stock       StockSource
	Logger      *logger.Logger
	BatchLimit  int
	Concurrency int
}

type service struct {
	engine      *pricing.Engine
	snapshots   SnapshotSource
	stock       StockSource
	logg        *logger.Logger
	batchLimit  int
	concurrency int
}

// NewService builds the quote service.
func NewService(params ServiceParams) (Service, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if params.Snapshots == nil {
		return nil, fmt.Errorf("snapshot source required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		engine:      params.Engine,
		snapshots:   params.Snapshots,
		stock:       params.Stock,
		logg:        params.Logger,
		batchLimit:  params.BatchLimit,
		concurrency: params.Concurrency,
	}
	if svc.batchLimit <= 0 {
		svc.batchLimit = defaultBatchLimit
	}
	if svc.concurrency <= 0 {
		svc.concurrency = defaultConcurrency
	}
	return svc, nil
}

func (s *service) Quote(ctx context.Context, req Request) (*Result, error) {
	if req.Key.ItemID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_id must be positive")
	}

	snapshot, err := s.snapshots.Get(ctx, req.Key.ItemID)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		snapshot = &models.PriceSnapshot{ItemID: req.Key.ItemID}
	}

	// an unknown condition is priced as disallowed, so there is no stock to look up
	ownQty := 0
	if req.Key.Condition.IsValid() {
		ownQty, err = s.stock.OnHand(ctx, req.Key)
		if err != nil {
			return nil, err
		}
	}

	quote := s.engine.Quote(pricing.Input{
		Trend:     snapshot.Trend,
		FoilTrend: snapshot.FoilTrend,
		IsFoil:    req.Key.IsFoil,
		Condition: req.Key.Condition,
		Context:   contextFor(snapshot, ownQty),
	})
	return &Result{Key: req.Key, Quote: quote}, nil
}

// QuoteBatch quotes every request concurrently and returns results in request order.
func (s *service) QuoteBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	if len(reqs) == 0 {
		return []Result{}, nil
	}
	if len(reqs) > s.batchLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("batch exceeds %d items", s.batchLimit)).
			WithDetails(map[string]int{"limit": s.batchLimit, "requested": len(reqs)})
	}

	results := make([]Result, len(reqs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, req := range reqs {
		i, req := i, req
		group.Go(func() error {
			result, err := s.Quote(groupCtx, req)
			if err != nil {
				return err
			}
			results[i] = *result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "batch_size", len(reqs)), "quote batch aborted")
		return nil, err
	}
	return results, nil
}

func contextFor(snapshot *models.PriceSnapshot, ownQty int) pricing.Context {
	ctx := pricing.Context{
		DemandRank:  snapshot.DemandRank,
		RecentSales: snapshot.RecentSales,
		Notable:     snapshot.Notable,
		LowStock:    snapshot.LowStock,
		OwnQty:      &ownQty,
	}
	if snapshot.VolumeMetric.Valid {
		volume := snapshot.VolumeMetric.Decimal
		ctx.VolumeMetric = &volume
	}
	return ctx
}
