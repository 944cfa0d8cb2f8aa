package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is the latest market reference and demand context for an item,
// refreshed by the price-guide ingestion.
type PriceSnapshot struct {
	ItemID       int64               `gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Trend        decimal.NullDecimal `gorm:"column:trend;type:numeric(12,2)"`
	FoilTrend    decimal.NullDecimal `gorm:"column:foil_trend;type:numeric(12,2)"`
	DemandRank   *int                `gorm:"column:demand_rank"`
	VolumeMetric decimal.NullDecimal `gorm:"column:volume_metric;type:numeric(12,4)"`
	RecentSales  *int                `gorm:"column:recent_sales"`
	Notable      bool                `gorm:"column:notable;not null;default:false"`
	LowStock     bool                `gorm:"column:low_stock;not null;default:false"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;not null"`
}
