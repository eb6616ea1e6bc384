package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"salon-service/api"
	"salon-service/pkg/response"
	"salon-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type OperationCreator interface {
	CreateOperation(ctx context.Context, req *api.OperationCreateRequest) (*api.OperationResponse, error)
}

type Request struct {
	api.OperationCreateRequest
}

type Response struct {
	response.Response
	Operation *api.OperationResponse `json:"operation,omitempty"`
}

func New(log *slog.Logger, creator OperationCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		for field, value := range map[string]string{
			"personel_id": req.PersonnelID,
			"musteri_id":  req.CustomerID,
			"islem_id":    req.ServiceID,
		} {
			if value == "" {
				log.Error("required field is empty", slog.String("field", field))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.BAD_REQUEST), field+" is required"))
				return
			}
		}

		operation, err := creator.CreateOperation(r.Context(), &req.OperationCreateRequest)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to create operation", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create operation"))
			return
		}

		log.Info("Operation created", slog.String("id", operation.ID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Operation: operation,
		})
	}
}
