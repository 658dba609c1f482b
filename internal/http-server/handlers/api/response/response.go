package response

import (
	"encoding/json"
	serrors "errors"
	"log/slog"
	"net/http"

	"procurement_system/internal/lib/api"
	"procurement_system/internal/lib/errors"
	"procurement_system/internal/models/response"
	"procurement_system/internal/models/tenant"
	"procurement_system/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ResponseUpserter interface {
	UpsertResponse(tc tenant.Context, itemId string, req response.SubmitRequest) (response.Response, error)
}

type ItemResponsesReader interface {
	ReadItemResponses(tc tenant.Context, itemId string) ([]response.Response, error)
}

// NewPutResponse stores a supplier's offer for one item. Resubmission by the
// same supplier replaces the earlier offer, last write wins.
func NewPutResponse(log *slog.Logger, upserter ResponseUpserter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		itemId := chi.URLParam(r, "itemId")
		if itemId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The item id is invalid"))
			return
		}

		var req response.SubmitRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()

		err := decoder.Decode(&req)
		if err != nil {
			log.Error("Error decoding request body")
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		err = validate.Struct(req)
		if err != nil {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The supplier id is empty"))
			return
		}

		if req.Price != nil && *req.Price < 0 {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The price must not be negative"))
			return
		}

		resp, err := upserter.UpsertResponse(tc, itemId, req)
		if err != nil {
			switch {
			case serrors.Is(err, postgres.ErrSupplierNotInvited):
				render.Status(r, 403)
			case serrors.Is(err, postgres.ErrNotFound):
				render.Status(r, 404)
			default:
				render.Status(r, 500)
			}
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewGetItemResponses(log *slog.Logger, reader ItemResponsesReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		itemId := chi.URLParam(r, "itemId")
		if itemId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The item id is invalid"))
			return
		}

		resp, err := reader.ReadItemResponses(tc, itemId)
		if err != nil {
			render.Status(r, 500)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		render.JSON(w, r, resp)
	}
}
