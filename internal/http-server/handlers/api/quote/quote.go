package quote

import (
	"encoding/json"
	serrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"procurement_system/internal/lib/api"
	"procurement_system/internal/lib/errors"
	"procurement_system/internal/models/quote"
	"procurement_system/internal/models/tenant"
	"procurement_system/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type QuoteSaver interface {
	SaveQuote(tc tenant.Context, req quote.QuoteRequest) (quote.QuoteResponse, error)
}

type QuoteGetter interface {
	ReadQuotes(tc tenant.Context, limit, offset int, status string) ([]quote.QuoteResponse, error)
}

type QuoteStatusGetter interface {
	ReadQuoteStatus(tc tenant.Context, quoteId string) (string, error)
}

type QuoteStatusPutter interface {
	UpdateQuoteStatus(tc tenant.Context, quoteId, status string) (quote.QuoteResponse, error)
}

type ItemAdder interface {
	AddQuoteItem(tc tenant.Context, quoteId string, req quote.ItemRequest) (quote.Item, error)
}

type SupplierInviter interface {
	InviteSupplier(tc tenant.Context, quoteId, supplierId string) (quote.Invitation, error)
	ReadInvitations(tc tenant.Context, quoteId string) ([]quote.Invitation, error)
}

func NewPostQuote(log *slog.Logger, quoteSaver QuoteSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		var req quote.QuoteRequest

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
			render.JSON(w, r, errors.NewHttpError("One of the fields is empty"))
			return
		}

		resp, err := quoteSaver.SaveQuote(tc, req)
		if err != nil {
			renderStorageError(w, r, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewGetQuotes(log *slog.Logger, quoteGetter QuoteGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		status := r.URL.Query().Get("status")
		if err := validateStatus(status); err != nil && status != "" {
			log.Error("Incorrect status filter")
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("Incorrect status filter"))
			return
		}

		var limit, offset int
		var err error
		if r.URL.Query().Get("limit") == "" {
			limit = 5
		} else {
			limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
			if err != nil {
				log.Error("Incorrect limit value")
				render.Status(r, 400)
				render.JSON(w, r, errors.NewHttpError("Incorrect limit value"))
				return
			}
		}
		if r.URL.Query().Get("offset") == "" {
			offset = 0
		} else {
			offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
			if err != nil {
				log.Error("Incorrect offset value")
				render.Status(r, 400)
				render.JSON(w, r, errors.NewHttpError("Incorrect offset value"))
				return
			}
		}

		resp, err := quoteGetter.ReadQuotes(tc, limit, offset, status)
		if err != nil {
			log.Error("Failed to read quotes", slog.Attr{Key: "error", Value: slog.StringValue(err.Error())})
			render.Status(r, 500)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewGetQuoteStatus(log *slog.Logger, statusGetter QuoteStatusGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		quoteId := chi.URLParam(r, "quoteId")
		if quoteId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The quote id is invalid"))
			return
		}

		status, err := statusGetter.ReadQuoteStatus(tc, quoteId)
		if err != nil {
			renderStorageError(w, r, err)
			return
		}

		render.JSON(w, r, status)
	}
}

func NewPutQuoteStatus(log *slog.Logger, statusPutter QuoteStatusPutter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		quoteId := chi.URLParam(r, "quoteId")
		if quoteId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The quote id is invalid"))
			return
		}

		status := r.URL.Query().Get("status")
		if err := validateStatus(status); err != nil {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("Invalid status"))
			return
		}

		resp, err := statusPutter.UpdateQuoteStatus(tc, quoteId, status)
		if err != nil {
			renderStorageError(w, r, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewPostQuoteItem(log *slog.Logger, itemAdder ItemAdder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		quoteId := chi.URLParam(r, "quoteId")
		if quoteId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The quote id is invalid"))
			return
		}

		var req quote.ItemRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()

		err := decoder.Decode(&req)
		if err != nil {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		err = validate.Struct(req)
		if err != nil {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("One of the fields is empty"))
			return
		}

		item, err := itemAdder.AddQuoteItem(tc, quoteId, req)
		if err != nil {
			renderStorageError(w, r, err)
			return
		}

		render.JSON(w, r, item)
	}
}

func NewPostInvitation(log *slog.Logger, inviter SupplierInviter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		quoteId := chi.URLParam(r, "quoteId")
		if quoteId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The quote id is invalid"))
			return
		}

		var req quote.InviteRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()

		err := decoder.Decode(&req)
		if err != nil {
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

		inv, err := inviter.InviteSupplier(tc, quoteId, req.SupplierId)
		if err != nil {
			renderStorageError(w, r, err)
			return
		}

		render.JSON(w, r, inv)
	}
}

func NewGetInvitations(log *slog.Logger, inviter SupplierInviter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := api.TenantContext(r)
		if !ok {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The tenant id is empty"))
			return
		}

		quoteId := chi.URLParam(r, "quoteId")
		if quoteId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The quote id is invalid"))
			return
		}

		invs, err := inviter.ReadInvitations(tc, quoteId)
		if err != nil {
			renderStorageError(w, r, err)
			return
		}

		render.JSON(w, r, invs)
	}
}

func renderStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case serrors.Is(err, postgres.ErrBadRequest):
		render.Status(r, 400)
	case serrors.Is(err, postgres.ErrForbidden):
		render.Status(r, 403)
	case serrors.Is(err, postgres.ErrNotFound):
		render.Status(r, 404)
	default:
		render.Status(r, 500)
	}
	render.JSON(w, r, errors.NewHttpError(err.Error()))
}

func validateStatus(status string) error {
	if status != quote.StatusDraft && status != quote.StatusOpen && status != quote.StatusClosed && status != quote.StatusCancelled {
		return fmt.Errorf("invalid status parameter")
	}

	return nil
}
