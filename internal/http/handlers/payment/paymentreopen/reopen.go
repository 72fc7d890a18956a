// Package paymentreopen реализует HTTP-обработчик повторного открытия
// ожидающего платежа: клиент получает тот же платёж с тем же QR-кодом,
// пока срок не истёк.
package paymentreopen

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
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// Handler управляет HTTP-запросами на повторное открытие платежа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики повторного открытия платежа.
type Service interface {
	Reopen(ctx context.Context, userUID string) (*models.Payment, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Повторно открыть ожидающий платёж
// @Description Возвращает живой ожидающий платёж и восстанавливает указатель пользователя.
// @Tags Payments
// @Produce  json
// @Success 200 {object} map[string]any "Ожидающий платёж"
// @Failure 404 {object} response.ErrorResponse "Платежей нет"
// @Failure 409 {object} response.ErrorResponse "Последний платёж отклонён"
// @Failure 410 {object} response.ErrorResponse "Ожидающий платёж истёк"
// @Router /payments/reopen [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.reopen"
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

	payment, err := h.service.Reopen(r.Context(), userUID)
	if err != nil {
		var rejected *errs.RejectedError
		switch {
		case errors.Is(err, errs.ErrPaymentExpired):
			log.Info("pending payment expired", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusGone)
			render.JSON(w, r, response.Error("pending payment expired, start a new payment"))
		case errors.As(err, &rejected):
			log.Info("last payment was rejected", slog.String("reason", rejected.Reason))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("payment rejected: "+rejected.Reason))
		case errors.Is(err, errs.ErrPaymentNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no payments found"))
		default:
			log.Error("failed to reopen payment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not reopen payment"))
		}
		return
	}

	log.Info("payment reopened", slog.String("payment_id", payment.ID))
	render.JSON(w, r, response.OKWithData(payment))
}
