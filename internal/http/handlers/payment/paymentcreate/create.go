// Package paymentcreate реализует HTTP-обработчик создания платежа за план.
//
// Handler принимает JSON с идентификатором плана, извлекает uid пользователя
// из контекста и вызывает контроллер жизненного цикла. Если у пользователя
// уже есть живой ожидающий платёж, возвращает 409 — клиент должен вызывать
// reopen вместо создания нового.
package paymentcreate

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
	"github.com/magabrotheeeer/gastropass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gastropass/internal/http/response"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// Handler управляет HTTP-запросами на создание платежей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики создания платежа.
type Service interface {
	Create(ctx context.Context, userUID, planID string) (*models.Payment, error)
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
// @Summary Создать платёж за план
// @Description Создаёт ожидающий платёж с QR-кодом PIX. 409 — уже есть живой ожидающий платёж.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body models.DummyPaymentCreate true "Идентификатор плана"
// @Success 200 {object} map[string]any "Созданный платёж"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Ожидающий платёж уже существует"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPaymentCreate
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

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	payment, err := h.service.Create(r.Context(), userUID, req.PlanID)
	if err != nil {
		if errors.Is(err, errs.ErrPendingPaymentExists) {
			log.Info("pending payment already exists", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("pending payment already exists, reopen it instead"))
			return
		}
		log.Error("failed to create payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create payment"))
		return
	}

	log.Info("payment created", slog.String("payment_id", payment.ID))
	render.JSON(w, r, response.OKWithData(payment))
}
