package po

import (
	serrors "errors"
	"log/slog"
	"net/http"

	"procurement_system/internal/generator"
	"procurement_system/internal/lib/api"
	"procurement_system/internal/lib/errors"
	"procurement_system/internal/models/tenant"
	"procurement_system/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type GenerationValidator interface {
	ValidateForGeneration(tc tenant.Context, quoteId string) (generator.ValidationResult, error)
}

type OrderGenerator interface {
	Generate(tc tenant.Context, quoteId string) (generator.GenerationResult, error)
}

func NewPostValidate(log *slog.Logger, validator GenerationValidator) http.HandlerFunc {
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

		result, err := validator.ValidateForGeneration(tc, quoteId)
		if err != nil {
			switch {
			case serrors.Is(err, postgres.ErrNotFound):
				render.Status(r, 404)
			default:
				render.Status(r, 500)
			}
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		render.JSON(w, r, result)
	}
}

func NewPostGenerate(log *slog.Logger, orderGenerator OrderGenerator) http.HandlerFunc {
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

		result, err := orderGenerator.Generate(tc, quoteId)
		if err != nil {
			switch {
			case serrors.Is(err, postgres.ErrGenerationInProgress):
				render.Status(r, 409)
			case serrors.Is(err, generator.ErrNothingToGenerate):
				render.Status(r, 400)
			case serrors.Is(err, generator.ErrTotalFailure):
				render.Status(r, 500)
				render.JSON(w, r, result)
				return
			case serrors.Is(err, postgres.ErrNotFound):
				render.Status(r, 404)
			default:
				render.Status(r, 500)
			}
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		render.JSON(w, r, result)
	}
}
