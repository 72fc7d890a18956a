// Package paymentstatus реализует HTTP-обработчик чтения статуса платежа.
// Ответ отдаётся через Redis-кэш с коротким TTL, чтобы выдерживать
// частый поллинг клиентов.
package paymentstatus

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gastropass/internal/http/response"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// Handler управляет HTTP-запросами на чтение статуса платежа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения платежа.
type Service interface {
	GetStatus(ctx context.Context, paymentID string) (*models.Payment, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить статус платежа
// @Description Возвращает платёж по идентификатору. Обычные пользователи видят только свои платежи.
// @Tags Payments
// @Produce  json
// @Param id path string true "Идентификатор платежа"
// @Success 200 {object} map[string]any "Платёж"
// @Failure 404 {object} response.ErrorResponse "Платёж не найден"
// @Router /payments/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("payment id is required"))
		return
	}

	userUID, _ := r.Context().Value(middlewarectx.UserUID).(string)
	role, _ := r.Context().Value(middlewarectx.Role).(string)

	payment, err := h.service.GetStatus(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, errs.ErrPaymentNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("payment not found"))
			return
		}
		log.Error("failed to get payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get payment"))
		return
	}

	// Чужой платёж для обычного пользователя неотличим от несуществующего.
	if role != "admin" && payment.UserUID != userUID {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("payment not found"))
		return
	}

	render.JSON(w, r, response.OKWithData(payment))
}
