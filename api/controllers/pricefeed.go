package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/api/responses"
	"github.com/angelmondragon/buyback-backend/api/validators"
	"github.com/angelmondragon/buyback-backend/internal/pricefeed"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
)

type priceSnapshotRequest struct {
	Trend        decimal.NullDecimal `json:"trend"`
	FoilTrend    decimal.NullDecimal `json:"foil_trend"`
	DemandRank   *int                `json:"demand_rank" validate:"omitempty,gte=1"`
	VolumeMetric decimal.NullDecimal `json:"volume_metric"`
	RecentSales  *int                `json:"recent_sales" validate:"omitempty,gte=0"`
	Notable      bool                `json:"notable"`
	LowStock     bool                `json:"low_stock"`
}

// PriceFeedUpsert stores the latest market snapshot for an item.
func PriceFeedUpsert(svc pricefeed.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price feed unavailable"))
			return
		}

		itemID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "itemId")), 10, 64)
		if err != nil || itemID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid item id"))
			return
		}

		var body priceSnapshotRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Upsert(r.Context(), pricefeed.UpsertInput{
			ItemID:       itemID,
			Trend:        body.Trend,
			FoilTrend:    body.FoilTrend,
			DemandRank:   body.DemandRank,
			VolumeMetric: body.VolumeMetric,
			RecentSales:  body.RecentSales,
			Notable:      body.Notable,
			LowStock:     body.LowStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}

// PriceFeedGet returns the stored snapshot for an item.
func PriceFeedGet(svc pricefeed.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price feed unavailable"))
			return
		}

		itemID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "itemId")), 10, 64)
		if err != nil || itemID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid item id"))
			return
		}

		snapshot, err := svc.Get(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}
