package models

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

// StockKey identifies one fungible stocking unit.
type StockKey struct {
	ItemID    int64               `json:"item_id"`
	IsFoil    bool                `json:"is_foil"`
	Condition enums.CardCondition `json:"condition"`
	Language  string              `json:"language"`
}

func (k StockKey) String() string {
	foil := "nonfoil"
	if k.IsFoil {
		foil = "foil"
	}
	return fmt.Sprintf("%d/%s/%s/%s", k.ItemID, foil, k.Condition, k.Language)
}

// Fields returns the key as structured log fields.
func (k StockKey) Fields() map[string]any {
	return map[string]any{
		"item_id":   k.ItemID,
		"is_foil":   k.IsFoil,
		"condition": string(k.Condition),
		"language":  k.Language,
	}
}

// Scope filters a query to rows belonging to the key.
func (k StockKey) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"item_id = ? AND is_foil = ? AND card_condition = ? AND language = ?",
			k.ItemID, k.IsFoil, k.Condition, k.Language,
		)
	}
}
