package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
)

const defaultCacheTTL = 15 * time.Minute

// Service serves the latest market snapshot per item.
type Service interface {
	Get(ctx context.Context, itemID int64) (*models.PriceSnapshot, error)
	Upsert(ctx context.Context, input UpsertInput) (*models.PriceSnapshot, error)
}

// UpsertInput is one ingested price-guide row.
type UpsertInput struct {
	ItemID       int64               `json:"item_id"`
	Trend        decimal.NullDecimal `json:"trend"`
	FoilTrend    decimal.NullDecimal `json:"foil_trend"`
	DemandRank   *int                `json:"demand_rank,omitempty"`
	VolumeMetric decimal.NullDecimal `json:"volume_metric"`
	RecentSales  *int                `json:"recent_sales,omitempty"`
	Notable      bool                `json:"notable"`
	LowStock     bool                `json:"low_stock"`
}

// ServiceParams wires the price feed.
type ServiceParams struct {
	Repository Repository
	Cache      Cache
	CacheTTL   time.Duration
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo  Repository
	cache *snapshotCache
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the price feed. A nil Cache disables caching.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("price snapshot repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{repo: params.Repository, logg: params.Logger, now: params.Now}
	if svc.now == nil {
		svc.now = time.Now
	}
	if params.Cache != nil {
		ttl := params.CacheTTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		svc.cache = &snapshotCache{store: params.Cache, ttl: ttl}
	}
	return svc, nil
}

func (s *service) Get(ctx context.Context, itemID int64) (*models.PriceSnapshot, error) {
	if itemID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_id must be positive")
	}
	ctx = s.logg.WithField(ctx, "item_id", itemID)

	if s.cache != nil {
		cached, err := s.cache.get(ctx, itemID)
		switch {
		case err == nil:
			return cached, nil
		case !errors.Is(err, errCacheMiss):
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "price snapshot cache read failed")
		}
	}

	snapshot, err := s.repo.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price snapshot")
	}
	if snapshot == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no price snapshot for item %d", itemID))
	}

	if s.cache != nil {
		if err := s.cache.put(ctx, snapshot); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "price snapshot cache write failed")
		}
	}
	return snapshot, nil
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.PriceSnapshot, error) {
	if err := validateUpsert(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "item_id", input.ItemID)

	snapshot := &models.PriceSnapshot{
		ItemID:       input.ItemID,
		Trend:        input.Trend,
		FoilTrend:    input.FoilTrend,
		DemandRank:   input.DemandRank,
		VolumeMetric: input.VolumeMetric,
		RecentSales:  input.RecentSales,
		Notable:      input.Notable,
		LowStock:     input.LowStock,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store price snapshot")
	}

	if s.cache != nil {
		if err := s.cache.evict(ctx, input.ItemID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "price snapshot cache evict failed")
		}
	}
	s.logg.Debug(ctx, "price snapshot upserted")
	return snapshot, nil
}

func validateUpsert(input UpsertInput) error {
	invalid := func(msg string) error { return pkgerrors.New(pkgerrors.CodeValidation, msg) }
	if input.ItemID <= 0 {
		return invalid("item_id must be positive")
	}
	if input.Trend.Valid && input.Trend.Decimal.IsNegative() {
		return invalid("trend must not be negative")
	}
	if input.FoilTrend.Valid && input.FoilTrend.Decimal.IsNegative() {
		return invalid("foil_trend must not be negative")
	}
	if input.VolumeMetric.Valid && input.VolumeMetric.Decimal.IsNegative() {
		return invalid("volume_metric must not be negative")
	}
	if input.DemandRank != nil && *input.DemandRank < 1 {
		return invalid("demand_rank must be at least 1")
	}
	if input.RecentSales != nil && *input.RecentSales < 0 {
		return invalid("recent_sales must not be negative")
	}
	return nil
}
