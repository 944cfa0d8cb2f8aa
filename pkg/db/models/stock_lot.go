package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

// StockLot is one received batch of a stocking key. Lots are never merged or
// deleted; QtyRemaining only decreases, and a lot at zero is depleted for good.
type StockLot struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ItemID       int64               `gorm:"column:item_id;not null;index:idx_stock_lots_key_source,priority:1"`
	IsFoil       bool                `gorm:"column:is_foil;not null;index:idx_stock_lots_key_source,priority:2"`
	Condition    enums.CardCondition `gorm:"column:card_condition;type:varchar(2);not null;index:idx_stock_lots_key_source,priority:3"`
	Language     string              `gorm:"column:language;type:varchar(8);not null;index:idx_stock_lots_key_source,priority:4"`
	QtyIn        int                 `gorm:"column:qty_in;not null"`
	QtyRemaining int                 `gorm:"column:qty_remaining;not null"`
	UnitCost     decimal.Decimal     `gorm:"column:unit_cost;type:numeric(12,4);not null"`
	SourceCode   string              `gorm:"column:source_code;not null"`
	SourceDate   time.Time           `gorm:"column:source_date;not null;index:idx_stock_lots_key_source,priority:5"`
	Location     *string             `gorm:"column:location"`
	CreatedAt    time.Time           `gorm:"column:created_at;not null;index:idx_stock_lots_key_source,priority:6"`
}

// Key returns the stocking key the lot belongs to.
func (l StockLot) Key() StockKey {
	return StockKey{ItemID: l.ItemID, IsFoil: l.IsFoil, Condition: l.Condition, Language: l.Language}
}

// IsDepleted reports whether the lot has nothing left to consume.
func (l StockLot) IsDepleted() bool {
	return l.QtyRemaining == 0
}
