package controllers

import (
	"net/http"

	"github.com/angelmondragon/buyback-backend/api/responses"
	"github.com/angelmondragon/buyback-backend/api/validators"
	"github.com/angelmondragon/buyback-backend/internal/quotes"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
)

type quoteBatchRequest struct {
	Items []stockKeyRequest `json:"items" validate:"required,min=1,dive"`
}

// QuoteSingle prices one stocking key.
func QuoteSingle(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		var body stockKeyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Quote(r.Context(), quotes.Request{Key: body.toKey()})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// QuoteBatch prices a list of keys; results keep the request order.
func QuoteBatch(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		var body quoteBatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reqs := make([]quotes.Request, 0, len(body.Items))
		for _, item := range body.Items {
			reqs = append(reqs, quotes.Request{Key: item.toKey()})
		}

		results, err := svc.QuoteBatch(r.Context(), reqs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": results})
	}
}
