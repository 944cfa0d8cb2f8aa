package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

// StockMutation is the immutable audit record of one ledger operation.
type StockMutation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ItemID    int64                   `gorm:"column:item_id;not null;index:idx_stock_mutations_key_ts,priority:1"`
	IsFoil    bool                    `gorm:"column:is_foil;not null;index:idx_stock_mutations_key_ts,priority:2"`
	Condition enums.CardCondition     `gorm:"column:card_condition;type:varchar(2);not null;index:idx_stock_mutations_key_ts,priority:3"`
	Language  string                  `gorm:"column:language;type:varchar(8);not null;index:idx_stock_mutations_key_ts,priority:4"`
	Delta     int                     `gorm:"column:delta;not null"`
	Kind      enums.StockMutationKind `gorm:"column:kind;type:varchar(16);not null"`
	Reason    string                  `gorm:"column:reason;not null"`
	Reference *string                 `gorm:"column:reference"`
	CreatedAt time.Time               `gorm:"column:created_at;not null;index:idx_stock_mutations_key_ts,priority:5"`
}

// Key returns the stocking key of the mutation.
func (m StockMutation) Key() StockKey {
	return StockKey{ItemID: m.ItemID, IsFoil: m.IsFoil, Condition: m.Condition, Language: m.Language}
}
