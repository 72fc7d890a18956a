// Package benefitredeem реализует HTTP-обработчик погашения скидочной льготы.
package benefitredeem

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gastropass/internal/http/response"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/services/benefits"
)

// Handler управляет HTTP-запросами на погашение льготы.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики погашения льгот.
type Service interface {
	Redeem(ctx context.Context, userUID string) (int, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

type redeemResult struct {
	Unlimited   bool `json:"unlimited"`
	CouponsLeft int  `json:"coupons_left"`
}

// ServeHTTP godoc
// @Summary Погасить скидочную льготу
// @Description С активным платным планом погашения безлимитны, иначе списывается один бесплатный купон.
// @Tags Benefits
// @Produce  json
// @Success 200 {object} map[string]any "Результат погашения"
// @Failure 402 {object} response.ErrorResponse "Купоны закончились"
// @Router /benefits/redeem [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.benefit.redeem"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	remaining, err := h.service.Redeem(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, errs.ErrNoCouponsLeft) {
			log.Info("no coupons left", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("no free coupons left, subscribe to a plan"))
			return
		}
		log.Error("failed to redeem benefit", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not redeem benefit"))
		return
	}

	result := redeemResult{
		Unlimited:   remaining == benefits.UnlimitedRedemptions,
		CouponsLeft: remaining,
	}
	render.JSON(w, r, response.OKWithData(result))
}
