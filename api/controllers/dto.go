package controllers

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

type stockKeyRequest struct {
	ItemID    int64  `json:"item_id" validate:"gt=0"`
	IsFoil    bool   `json:"is_foil"`
	Condition string `json:"condition" validate:"required,max=16"`
	Language  string `json:"language" validate:"required,max=8"`
}

func (k stockKeyRequest) toKey() models.StockKey {
	return models.StockKey{
		ItemID:    k.ItemID,
		IsFoil:    k.IsFoil,
		Condition: enums.CardCondition(strings.ToUpper(strings.TrimSpace(k.Condition))),
		Language:  strings.ToUpper(strings.TrimSpace(k.Language)),
	}
}

type balanceResponse struct {
	ItemID      int64               `json:"item_id"`
	IsFoil      bool                `json:"is_foil"`
	Condition   enums.CardCondition `json:"condition"`
	Language    string              `json:"language"`
	QtyOnHand   int                 `json:"qty_on_hand"`
	AvgUnitCost decimal.NullDecimal `json:"avg_unit_cost"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func newBalanceResponse(b *models.StockBalance) balanceResponse {
	return balanceResponse{
		ItemID:      b.ItemID,
		IsFoil:      b.IsFoil,
		Condition:   b.Condition,
		Language:    b.Language,
		QtyOnHand:   b.QtyOnHand,
		AvgUnitCost: b.AvgUnitCost,
		UpdatedAt:   b.UpdatedAt,
	}
}

type lotResponse struct {
	ID           uuid.UUID       `json:"id"`
	QtyIn        int             `json:"qty_in"`
	QtyRemaining int             `json:"qty_remaining"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SourceCode   string          `json:"source_code"`
	SourceDate   time.Time       `json:"source_date"`
	Location     *string         `json:"location,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newLotResponses(lots []models.StockLot) []lotResponse {
	out := make([]lotResponse, 0, len(lots))
	for _, lot := range lots {
		out = append(out, lotResponse{
			ID:           lot.ID,
			QtyIn:        lot.QtyIn,
			QtyRemaining: lot.QtyRemaining,
			UnitCost:     lot.UnitCost,
			SourceCode:   lot.SourceCode,
			SourceDate:   lot.SourceDate,
			Location:     lot.Location,
			CreatedAt:    lot.CreatedAt,
		})
	}
	return out
}

type mutationResponse struct {
	ID        uuid.UUID               `json:"id"`
	Delta     int                     `json:"delta"`
	Kind      enums.StockMutationKind `json:"kind"`
	Reason    string                  `json:"reason"`
	Reference *string                 `json:"reference,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

func newMutationResponses(mutations []models.StockMutation) []mutationResponse {
	out := make([]mutationResponse, 0, len(mutations))
	for _, m := range mutations {
		out = append(out, mutationResponse{
			ID:        m.ID,
			Delta:     m.Delta,
			Kind:      m.Kind,
			Reason:    m.Reason,
			Reference: m.Reference,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

type snapshotResponse struct {
	ItemID       int64               `json:"item_id"`
	Trend        decimal.NullDecimal `json:"trend"`
	FoilTrend    decimal.NullDecimal `json:"foil_trend"`
	DemandRank   *int                `json:"demand_rank,omitempty"`
	VolumeMetric decimal.NullDecimal `json:"volume_metric"`
	RecentSales  *int                `json:"recent_sales,omitempty"`
	Notable      bool                `json:"notable"`
	LowStock     bool                `json:"low_stock"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func newSnapshotResponse(s *models.PriceSnapshot) snapshotResponse {
	return snapshotResponse{
		ItemID:       s.ItemID,
		Trend:        s.Trend,
		FoilTrend:    s.FoilTrend,
		DemandRank:   s.DemandRank,
		VolumeMetric: s.VolumeMetric,
		RecentSales:  s.RecentSales,
		Notable:      s.Notable,
		LowStock:     s.LowStock,
		UpdatedAt:    s.UpdatedAt,
	}
}
