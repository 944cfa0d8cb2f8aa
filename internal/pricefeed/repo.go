package pricefeed

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/buyback-backend/internal/repo"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
)

// Repository persists price snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByItemID(ctx context.Context, itemID int64) (*models.PriceSnapshot, error)
	Upsert(ctx context.Context, snapshot *models.PriceSnapshot) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a snapshot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

// FindByItemID returns nil, nil when the item has never been ingested.
func (r *repository) FindByItemID(ctx context.Context, itemID int64) (*models.PriceSnapshot, error) {
	var snapshot models.PriceSnapshot
	err := r.DB(ctx).Where("item_id = ?", itemID).Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *repository) Upsert(ctx context.Context, snapshot *models.PriceSnapshot) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"trend", "foil_trend", "demand_rank", "volume_metric",
				"recent_sales", "notable", "low_stock", "updated_at",
			}),
		}).
		Create(snapshot).Error
}
