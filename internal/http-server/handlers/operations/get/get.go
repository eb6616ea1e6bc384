package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"salon-service/api"
	"salon-service/internal/models"
	"salon-service/pkg/response"
	"salon-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type OperationGetter interface {
	GetOperation(ctx context.Context, id string) (*api.OperationResponse, error)
	ListOperations(ctx context.Context, filters *models.OperationFilters) ([]*api.OperationResponse, error)
}

type Response struct {
	response.Response
	Operations []api.OperationResponse `json:"operations,omitempty"`
	Operation  *api.OperationResponse  `json:"operation,omitempty"`
}

func New(log *slog.Logger, getter OperationGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		if id != "" {
			operation, err := getter.GetOperation(r.Context(), id)

			if errors.Is(err, response.ErrNotFound) {
				log.Error("resource not found")
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
				return
			}

			if err != nil {
				log.Error("Failed to get operation", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get operation"))
				return
			}

			log.Info("Operation retrieved", slog.String("id", id))
			render.JSON(w, r, Response{Operation: operation})
			return
		}

		filters := &models.OperationFilters{}

		if personnelID := r.URL.Query().Get("personel_id"); personnelID != "" {
			filters.PersonnelID = &personnelID
		}
		if customerID := r.URL.Query().Get("musteri_id"); customerID != "" {
			filters.CustomerID = &customerID
		}
		if appointmentID := r.URL.Query().Get("randevu_id"); appointmentID != "" {
			filters.AppointmentID = &appointmentID
		}

		operations, err := getter.ListOperations(r.Context(), filters)
		if err != nil {
			log.Error("Failed to list operations", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list operations"))
			return
		}

		log.Info("Operations retrieved", slog.Int("count", len(operations)))

		operationsResponse := make([]api.OperationResponse, len(operations))
		for i, o := range operations {
			operationsResponse[i] = *o
		}
		render.JSON(w, r, Response{Operations: operationsResponse})
	}
}
