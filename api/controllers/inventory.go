package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/api/responses"
	"github.com/angelmondragon/buyback-backend/api/validators"
	"github.com/angelmondragon/buyback-backend/internal/ledger"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/pagination"
)

type receiveRequest struct {
	stockKeyRequest
	Qty        int             `json:"qty" validate:"gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	SourceCode string          `json:"source_code" validate:"required,max=64"`
	SourceDate string          `json:"source_date" validate:"required"`
	Location   *string         `json:"location" validate:"omitempty,max=64"`
	Reason     string          `json:"reason" validate:"max=255"`
}

type consumeRequest struct {
	stockKeyRequest
	Qty       int     `json:"qty" validate:"gt=0"`
	Reason    string  `json:"reason" validate:"required,max=255"`
	Reference *string `json:"reference" validate:"omitempty,max=128"`
}

type adjustRequest struct {
	stockKeyRequest
	Delta  int    `json:"delta" validate:"ne=0"`
	Reason string `json:"reason" validate:"required,max=255"`
}

// InventoryReceive opens a lot for newly bought stock.
func InventoryReceive(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		var body receiveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sourceDate, err := parseSourceDate(body.SourceDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Receive(r.Context(), ledger.ReceiveInput{
			Key:        body.toKey(),
			Qty:        body.Qty,
			UnitCost:   body.UnitCost,
			SourceCode: validators.SanitizeString(body.SourceCode, 64),
			SourceDate: sourceDate,
			Location:   body.Location,
			Reason:     validators.SanitizeString(body.Reason, 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBalanceResponse(balance))
	}
}

// InventoryConsume removes stock oldest lot first.
func InventoryConsume(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		var body consumeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Consume(r.Context(), ledger.ConsumeInput{
			Key:       body.toKey(),
			Qty:       body.Qty,
			Reason:    validators.SanitizeString(body.Reason, 255),
			Reference: body.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceResponse(balance))
	}
}

// InventoryAdjust applies a signed manual correction.
func InventoryAdjust(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Adjust(r.Context(), ledger.AdjustInput{
			Key:    body.toKey(),
			Delta:  body.Delta,
			Reason: validators.SanitizeString(body.Reason, 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceResponse(balance))
	}
}

func InventoryBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := keyFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceResponse(balance))
	}
}

func InventoryLots(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := keyFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeDepleted, err := validators.ParseQueryBool(r, "include_depleted", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lots, err := svc.ListLots(r.Context(), key, includeDepleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"lots": newLotResponses(lots)})
	}
}

func InventoryMutations(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := keyFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListMutations(r.Context(), key, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"mutations":   newMutationResponses(page.Mutations),
			"next_cursor": page.NextCursor,
		})
	}
}

// InventoryReconciliation reports drift between balances, lots and the mutation log.
func InventoryReconciliation(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driftingOnly, err := validators.ParseQueryBool(r, "drifting_only", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Reconcile(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if driftingOnly {
			report.Keys = report.DriftingKeys()
		}
		responses.WriteSuccess(w, report)
	}
}

func keyFromQuery(r *http.Request) (models.StockKey, error) {
	itemID, err := validators.ParseQueryInt64(r, "item_id")
	if err != nil {
		return models.StockKey{}, err
	}
	foil, err := validators.ParseQueryBool(r, "is_foil", false)
	if err != nil {
		return models.StockKey{}, err
	}
	condition, err := enums.ParseCardCondition(r.URL.Query().Get("condition"))
	if err != nil {
		return models.StockKey{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition").
			WithDetails(map[string]any{"field": "condition"})
	}
	language := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("language")))
	if language == "" {
		return models.StockKey{}, pkgerrors.New(pkgerrors.CodeValidation, "query parameter required").
			WithDetails(map[string]any{"field": "language"})
	}
	return models.StockKey{ItemID: itemID, IsFoil: foil, Condition: condition, Language: language}, nil
}

func parseSourceDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "source_date must be YYYY-MM-DD or RFC3339").
			WithDetails(map[string]any{"field": "source_date"})
	}
	return t.UTC(), nil
}
