// Package paymentdecision реализует админский HTTP-обработчик
// терминального решения по платежу: подтвердить, отклонить или отменить.
// Решение проходит через reconciler, который гарантирует идемпотентность
// и возврат средств при отклонении уже оплаченного платежа.
package paymentdecision

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/http/response"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// Handler управляет HTTP-запросами на решение по платежу.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс применения решения по платежу.
type Service interface {
	Decide(ctx context.Context, paymentID, rawStatus, reason string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Применить решение по платежу
// @Description Подтверждает, отклоняет или отменяет платёж. Повторное решение с тем же статусом — no-op. Только для администраторов.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body models.DummyDecision true "Решение"
// @Success 200 {object} response.Response "Решение применено"
// @Failure 400 {object} response.ErrorResponse "Некорректный статус"
// @Failure 404 {object} response.ErrorResponse "Платёж не найден"
// @Router /admin/payments/decision [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.decision"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyDecision
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.Decide(r.Context(), req.PaymentID, req.Status, req.Reason); err != nil {
		if errors.Is(err, errs.ErrPaymentNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("payment not found"))
			return
		}
		log.Error("failed to apply decision", sl.Err(err),
			slog.String("payment_id", req.PaymentID),
			slog.String("status", req.Status))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	log.Info("decision applied",
		slog.String("payment_id", req.PaymentID),
		slog.String("status", req.Status))
	render.JSON(w, r, response.OK())
}
