package stats

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"salon-service/api"
	"salon-service/pkg/response"
	"salon-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type StatsGetter interface {
	GetShopStats(ctx context.Context, shopID string) (*api.ShopStatsResponse, error)
}

type Response struct {
	response.Response
	Stats *api.ShopStatsResponse `json:"stats,omitempty"`
}

func New(log *slog.Logger, getter StatsGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.shops.stats.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		shopStats, err := getter.GetShopStats(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("stats not found", slog.String("dukkan_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "stats not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get shop stats", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get shop stats"))
			return
		}

		log.Info("Shop stats retrieved", slog.String("dukkan_id", id))
		render.JSON(w, r, Response{Stats: shopStats})
	}
}
