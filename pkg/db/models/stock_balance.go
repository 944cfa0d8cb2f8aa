package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

// StockBalance is the aggregate on-hand quantity for a stocking key.
// QtyOnHand always equals the sum of the key's lot QtyRemaining at commit.
type StockBalance struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ItemID      int64               `gorm:"column:item_id;not null;uniqueIndex:ux_stock_balances_key,priority:1"`
	IsFoil      bool                `gorm:"column:is_foil;not null;uniqueIndex:ux_stock_balances_key,priority:2"`
	Condition   enums.CardCondition `gorm:"column:card_condition;type:varchar(2);not null;uniqueIndex:ux_stock_balances_key,priority:3"`
	Language    string              `gorm:"column:language;type:varchar(8);not null;uniqueIndex:ux_stock_balances_key,priority:4"`
	QtyOnHand   int                 `gorm:"column:qty_on_hand;not null;default:0"`
	AvgUnitCost decimal.NullDecimal `gorm:"column:avg_unit_cost;type:numeric(12,4)"`
	CreatedAt   time.Time           `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;not null"`
}

// Key returns the stocking key of the balance.
func (b StockBalance) Key() StockKey {
	return StockKey{ItemID: b.ItemID, IsFoil: b.IsFoil, Condition: b.Condition, Language: b.Language}
}
