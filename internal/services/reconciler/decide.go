package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// RefundProvider запрашивает возврат средств у платёжного шлюза.
type RefundProvider interface {
	Refund(ctx context.Context, paymentID string, amountCents int64) error
}

// OverrideRepository дополняет PaymentRepository административным
// переводом уже оплаченного платежа в rejected.
type OverrideRepository interface {
	OverrideApproved(ctx context.Context, paymentID string, reason string) (bool, error)
}

// WithProvider задаёт клиент платёжного шлюза для возвратов.
func (s *Service) WithProvider(p RefundProvider) *Service {
	s.provider = p
	return s
}

// WithOverrideRepository задаёт репозиторий административных переопределений.
func (s *Service) WithOverrideRepository(r OverrideRepository) *Service {
	s.override = r
	return s
}

// WithEvents задаёт канал RabbitMQ для публикации событий статусов.
func (s *Service) WithEvents(ch *amqp.Channel) *Service {
	s.events = ch
	return s
}

// Decide записывает решение администратора или уведомление шлюза по платежу
// и публикует событие статуса в push-канал.
//
// Особый случай: отклонение уже оплаченного платежа сначала выполняет
// возврат средств через шлюз; неуспешный возврат прерывает отклонение,
// чтобы повтор операции довёл её до конца.
func (s *Service) Decide(ctx context.Context, paymentID, rawStatus, reason string) error {
	const op = "reconciler.Decide"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", paymentID))

	status, ok := models.NormalizeStatus(rawStatus)
	if !ok {
		return fmt.Errorf("%s: unknown status: %s", op, rawStatus)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("%s: decision must be terminal, got: %s", op, status)
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if payment == nil {
		return fmt.Errorf("%s: %w", op, errs.ErrPaymentNotFound)
	}

	if payment.Status == models.StatusApproved && status == models.StatusRejected {
		if err := s.rejectPaid(ctx, payment, reason); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.publishEvent(log, paymentID, status, reason)
		return nil
	}

	if err := s.ApplyTransition(ctx, paymentID, status, reason); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.publishEvent(log, paymentID, status, reason)
	return nil
}

// rejectPaid отклоняет уже оплаченный платёж: возврат средств, затем
// перевод платежа в rejected и пользователя на бесплатный план.
func (s *Service) rejectPaid(ctx context.Context, payment *models.Payment, reason string) error {
	if s.provider == nil || s.override == nil {
		return fmt.Errorf("refund path is not configured")
	}
	if err := s.provider.Refund(ctx, payment.ID, payment.AmountCents); err != nil {
		return fmt.Errorf("refund failed: %w", err)
	}

	wrote, err := s.override.OverrideApproved(ctx, payment.ID, reason)
	if err != nil {
		return err
	}
	if !wrote {
		// Платёж успел уйти из approved: решение уже применено другим путём.
		duplicateSignals.Inc()
		return nil
	}

	s.mu.Lock()
	s.applied[payment.ID] = models.StatusRejected
	s.mu.Unlock()

	if err := s.activator.Reject(ctx, payment.UserUID, reason); err != nil {
		// Платёж уже rejected в хранилище, но подписка не откачена.
		// Без снятия защёлки повтор решения осел бы в ветке дубликата.
		s.unlatch(payment.ID)
		return err
	}
	if err := s.cache.Invalidate("payment:" + payment.ID); err != nil {
		s.log.Warn("failed to invalidate payment cache", sl.Err(err))
	}
	transitionsApplied.WithLabelValues(string(models.StatusRejected)).Inc()
	s.stopWatcher(payment.ID)
	return nil
}

func (s *Service) publishEvent(log *slog.Logger, paymentID string, status models.PaymentStatus, reason string) {
	if s.events == nil {
		return
	}
	event := models.StatusEvent{PaymentID: paymentID, Status: string(status), Reason: reason}
	if err := rabbitmq.PublishMessage(s.events, rabbitmq.PaymentsExchange, rabbitmq.StatusRoutingKey, event); err != nil {
		log.Error("failed to publish status event", sl.Err(err))
	}
}
