// Package paymentpending реализует админский HTTP-обработчик списка
// всех ожидающих платежей.
package paymentpending

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/gastropass/internal/http/response"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// Handler управляет HTTP-запросами на список ожидающих платежей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики списка ожидающих платежей.
type Service interface {
	ListPending(ctx context.Context) ([]*models.Payment, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список ожидающих платежей
// @Description Возвращает все ожидающие платежи. Только для администраторов.
// @Tags Admin
// @Produce  json
// @Success 200 {object} map[string]any "Список ожидающих платежей"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Router /admin/payments/pending [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.pending"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payments, err := h.service.ListPending(r.Context())
	if err != nil {
		log.Error("failed to list pending payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list pending payments"))
		return
	}

	render.JSON(w, r, response.OKWithData(payments))
}
