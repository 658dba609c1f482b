package winners

import (
	"encoding/json"
	serrors "errors"
	"log/slog"
	"net/http"

	"procurement_system/internal/engine"
	"procurement_system/internal/lib/api"
	"procurement_system/internal/lib/errors"
	"procurement_system/internal/models/tenant"
	"procurement_system/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type TieDetector interface {
	DetectTies(tc tenant.Context, quoteId string) ([]engine.TieGroup, error)
}

type AutoSelector interface {
	AutoSelectWinners(tc tenant.Context, quoteId string) (int, error)
}

type TieResolver interface {
	ResolveTie(tc tenant.Context, itemId, chosenSupplierId string) (engine.Assignment, error)
}

type ManualSelector interface {
	SetWinnerManually(tc tenant.Context, itemId, supplierId, reasonCode, customReasonText string) (engine.Assignment, error)
}

type ComparisonReader interface {
	Comparison(tc tenant.Context, quoteId string) ([]engine.ComparisonRow, error)
}

type ResolveTieRequest struct {
	SupplierId string `json:"supplierId" validate:"required"`
}

type ManualWinnerRequest struct {
	SupplierId   string `json:"supplierId" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
	CustomReason string `json:"customReason,omitempty"`
}

type AutoSelectResponse struct {
	UpdatedItems int `json:"updatedItems"`
}

func NewGetTies(log *slog.Logger, detector TieDetector) http.HandlerFunc {
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

		groups, err := detector.DetectTies(tc, quoteId)
		if err != nil {
			renderEngineError(w, r, err)
			return
		}

		render.JSON(w, r, groups)
	}
}

func NewPostAutoSelect(log *slog.Logger, selector AutoSelector) http.HandlerFunc {
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

		count, err := selector.AutoSelectWinners(tc, quoteId)
		if err != nil {
			renderEngineError(w, r, err)
			return
		}

		log.Info("auto-select finished",
			slog.Attr{Key: "quoteId", Value: slog.StringValue(quoteId)},
			slog.Attr{Key: "updated", Value: slog.IntValue(count)},
		)

		render.JSON(w, r, AutoSelectResponse{UpdatedItems: count})
	}
}

func NewPutResolveTie(log *slog.Logger, resolver TieResolver) http.HandlerFunc {
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

		var req ResolveTieRequest
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

		assignment, err := resolver.ResolveTie(tc, itemId, req.SupplierId)
		if err != nil {
			renderEngineError(w, r, err)
			return
		}

		render.JSON(w, r, assignment)
	}
}

func NewPutManualWinner(log *slog.Logger, selector ManualSelector) http.HandlerFunc {
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

		var req ManualWinnerRequest
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

		assignment, err := selector.SetWinnerManually(tc, itemId, req.SupplierId, req.Reason, req.CustomReason)
		if err != nil {
			renderEngineError(w, r, err)
			return
		}

		render.JSON(w, r, assignment)
	}
}

func NewGetComparison(log *slog.Logger, reader ComparisonReader) http.HandlerFunc {
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

		rows, err := reader.Comparison(tc, quoteId)
		if err != nil {
			renderEngineError(w, r, err)
			return
		}

		render.JSON(w, r, rows)
	}
}

func renderEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case serrors.Is(err, engine.ErrInvalidSelection),
		serrors.Is(err, engine.ErrNoResponseFound),
		serrors.Is(err, engine.ErrInvalidReason),
		serrors.Is(err, postgres.ErrBadRequest):
		render.Status(r, 400)
	case serrors.Is(err, postgres.ErrNotFound):
		render.Status(r, 404)
	case serrors.Is(err, postgres.ErrAlreadyDecided):
		render.Status(r, 409)
	default:
		render.Status(r, 500)
	}
	render.JSON(w, r, errors.NewHttpError(err.Error()))
}
