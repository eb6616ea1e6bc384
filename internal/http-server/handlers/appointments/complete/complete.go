package complete

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"salon-service/api"
	"salon-service/internal/service"
	"salon-service/pkg/response"
	"salon-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AppointmentCompleter interface {
	CompleteAppointment(ctx context.Context, appointmentID string) (*service.CompletionResult, error)
}

type Request struct {
	api.CompleteAppointmentRequest
}

type Response struct {
	response.Response
	Success    bool                     `json:"success"`
	Message    string                   `json:"message,omitempty"`
	Operations []api.OperationResponse  `json:"operations"`
	Failed     []api.OperationItemError `json:"failed,omitempty"`
}

func New(log *slog.Logger, completer AppointmentCompleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.complete.New"

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

		if req.AppointmentID == "" {
			log.Error("appointment_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "appointment_id is required"))
			return
		}

		result, err := completer.CompleteAppointment(r.Context(), req.AppointmentID)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("appointment not found", slog.String("appointment_id", req.AppointmentID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "appointment not found"))
			return
		}

		if errors.Is(err, response.ErrNoServices) {
			log.Error("appointment has no services", slog.String("appointment_id", req.AppointmentID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.NO_SERVICES), "appointment has no services"))
			return
		}

		if errors.Is(err, response.ErrInvalidTransition) {
			log.Error("cancelled appointment cannot be completed", slog.String("appointment_id", req.AppointmentID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.INVALID_TRANSITION), "cancelled appointment cannot be completed"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("appointment is being processed", slog.String("appointment_id", req.AppointmentID))
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "appointment is being processed"))
			return
		}

		if err != nil {
			log.Error("Failed to complete appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to complete appointment"))
			return
		}

		for _, item := range result.Failed {
			log.Error("Service line item failed",
				slog.String("appointment_id", req.AppointmentID),
				slog.String("islem_id", item.ServiceID),
				slog.String("error", item.Error),
			)
		}

		log.Info("Appointment completed",
			slog.String("appointment_id", req.AppointmentID),
			slog.Int("operations", len(result.Operations)),
			slog.Int("failed", len(result.Failed)),
		)

		operations := make([]api.OperationResponse, len(result.Operations))
		for i, o := range result.Operations {
			operations[i] = *o
		}

		render.JSON(w, r, Response{
			Success:    true,
			Message:    fmt.Sprintf("processed %d of %d services", len(operations), len(operations)+len(result.Failed)),
			Operations: operations,
			Failed:     result.Failed,
		})
	}
}
