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

type AppointmentGetter interface {
	GetAppointment(ctx context.Context, id string) (*api.AppointmentResponse, error)
	ListAppointments(ctx context.Context, filters *models.AppointmentFilters) ([]*api.AppointmentResponse, error)
}

type Response struct {
	response.Response
	Appointments []api.AppointmentResponse `json:"appointments,omitempty"`
	Appointment  *api.AppointmentResponse  `json:"appointment,omitempty"`
}

func New(log *slog.Logger, getter AppointmentGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		if id != "" {
			appointment, err := getter.GetAppointment(r.Context(), id)

			if errors.Is(err, response.ErrNotFound) {
				log.Error("resource not found")
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
				return
			}

			if err != nil {
				log.Error("Failed to get appointment", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get appointment"))
				return
			}

			log.Info("Appointment retrieved", slog.String("id", id))
			render.JSON(w, r, Response{Appointment: appointment})
			return
		}

		filters := &models.AppointmentFilters{}

		if date := r.URL.Query().Get("date"); date != "" {
			filters.Date = &date
		}
		if shopID := r.URL.Query().Get("dukkan_id"); shopID != "" {
			filters.ShopID = &shopID
		}
		if personnelID := r.URL.Query().Get("personel_id"); personnelID != "" {
			filters.PersonnelID = &personnelID
		}
		if customerID := r.URL.Query().Get("musteri_id"); customerID != "" {
			filters.CustomerID = &customerID
		}
		if status := r.URL.Query().Get("status"); status != "" {
			filters.Status = &status
		}

		appointments, err := getter.ListAppointments(r.Context(), filters)
		if err != nil {
			log.Error("Failed to list appointments", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list appointments"))
			return
		}

		log.Info("Appointments retrieved", slog.Int("count", len(appointments)))

		appointmentsResponse := make([]api.AppointmentResponse, len(appointments))
		for i, a := range appointments {
			appointmentsResponse[i] = *a
		}
		render.JSON(w, r, Response{Appointments: appointmentsResponse})
	}
}
