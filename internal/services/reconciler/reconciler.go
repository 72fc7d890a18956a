// Package reconciler сводит сигналы двух независимых каналов — push-событий
// RabbitMQ и периодического опроса хранилища — в единственное применение
// терминального статуса платежа.
//
// Корректность держится на двух механизмах: per-payment защёлка в памяти
// (первый писатель побеждает, проигравшие становятся no-op) и
// compare-and-swap в хранилище (pending → терминальный). Терминальное
// наблюдение всегда доминирует над нетерминальным; позднее противоречащее
// терминальное наблюдение логируется и отбрасывается.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/gastropass/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// PaymentRepository определяет методы работы с платежами в хранилище.
type PaymentRepository interface {
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	// MarkTerminal выполняет compare-and-swap pending → терминальный статус;
	// false означает, что платёж уже не pending.
	MarkTerminal(ctx context.Context, paymentID string, status models.PaymentStatus, reason string) (bool, error)
	ListPending(ctx context.Context) ([]*models.Payment, error)
}

// Activator применяет терминальный исход к подписке пользователя.
type Activator interface {
	Activate(ctx context.Context, userUID, planID string, approvedAt time.Time) error
	Reject(ctx context.Context, userUID, reason string) error
	Cancel(ctx context.Context, userUID string) error
}

// Cache инвалидирует закешированные снапшоты платежей.
type Cache interface {
	Invalidate(key string) error
}

// Service реализует двухканальную сверку платежей.
type Service struct {
	repo      PaymentRepository
	activator Activator
	cache     Cache
	log       *slog.Logger

	pollInterval time.Duration
	now          func() time.Time

	provider RefundProvider
	override OverrideRepository
	events   *amqp.Channel

	mu       sync.Mutex
	applied  map[string]models.PaymentStatus // payment id -> применённый терминальный статус
	watchers map[string]context.CancelFunc
}

// New создает новый экземпляр Service.
func New(repo PaymentRepository, act Activator, cache Cache, log *slog.Logger, pollInterval time.Duration) *Service {
	return &Service{
		repo:         repo,
		activator:    act,
		cache:        cache,
		log:          log,
		pollInterval: pollInterval,
		now:          time.Now,
		applied:      make(map[string]models.PaymentStatus),
		watchers:     make(map[string]context.CancelFunc),
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ApplyTransition — единственная точка входа обоих каналов. Безопасна для
// конкурентных и избыточных вызовов: побочные эффекты применяются ровно
// один раз на платёж.
func (s *Service) ApplyTransition(ctx context.Context, paymentID string, observed models.PaymentStatus, reason string) error {
	const op = "reconciler.ApplyTransition"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", paymentID))

	// Нетерминальное наблюдение (всё ещё pending) — no-op.
	if !observed.IsTerminal() {
		nonTerminalIgnored.Inc()
		return nil
	}

	s.mu.Lock()
	prev, seen := s.applied[paymentID]
	if seen {
		s.mu.Unlock()
		if prev != observed {
			// Не должно случаться при read-after-write консистентном
			// хранилище, но дизайн обязан это переживать.
			conflictingSignals.Inc()
			log.Warn("conflicting terminal observation dropped",
				slog.String("applied", string(prev)),
				slog.String("observed", string(observed)))
		} else {
			duplicateSignals.Inc()
		}
		s.stopWatcher(paymentID)
		return nil
	}
	// Первый писатель побеждает: защёлка ставится до побочных эффектов,
	// проигравшие конкурентные вызовы увидят её и станут no-op.
	s.applied[paymentID] = observed
	s.mu.Unlock()

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		s.unlatch(paymentID)
		return fmt.Errorf("%s: %w", op, err)
	}
	if payment == nil {
		s.unlatch(paymentID)
		s.stopWatcher(paymentID)
		return fmt.Errorf("%s: payment not found: %s", op, paymentID)
	}

	wrote, err := s.repo.MarkTerminal(ctx, paymentID, observed, reason)
	if err != nil {
		s.unlatch(paymentID)
		return fmt.Errorf("%s: %w", op, err)
	}
	if !wrote && payment.Status.IsTerminal() && payment.Status != observed {
		// Хранилище уже содержит другой терминальный исход: наш проиграл.
		s.mu.Lock()
		s.applied[paymentID] = payment.Status
		s.mu.Unlock()
		conflictingSignals.Inc()
		log.Warn("store already holds different terminal status",
			slog.String("stored", string(payment.Status)),
			slog.String("observed", string(observed)))
		s.stopWatcher(paymentID)
		return nil
	}

	if err := s.applyOutcome(ctx, payment, observed, reason); err != nil {
		// Хранилище уже терминально, но подписка не изменена. Защёлка
		// снимается и наблюдатель остаётся жить, чтобы повтор из любого
		// канала довёл побочный эффект: MarkTerminal при повторе вернёт
		// false, а статус в хранилище совпадёт с наблюдаемым.
		s.unlatch(paymentID)
		log.Error("failed to apply outcome", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate("payment:" + paymentID); err != nil {
		log.Warn("failed to invalidate payment cache", sl.Err(err))
	}

	transitionsApplied.WithLabelValues(string(observed)).Inc()
	log.Info("terminal transition applied", slog.String("status", string(observed)))

	// Терминальный статус применён: оба канала этого платежа сворачиваются.
	s.stopWatcher(paymentID)
	return nil
}

func (s *Service) applyOutcome(ctx context.Context, payment *models.Payment, status models.PaymentStatus, reason string) error {
	switch status {
	case models.StatusApproved:
		return s.activator.Activate(ctx, payment.UserUID, payment.PlanID, s.now())
	case models.StatusRejected:
		if reason == "" {
			reason = payment.RejectionReason
		}
		return s.activator.Reject(ctx, payment.UserUID, reason)
	case models.StatusCancelled:
		return s.activator.Cancel(ctx, payment.UserUID)
	}
	return fmt.Errorf("unexpected terminal status: %s", status)
}

func (s *Service) unlatch(paymentID string) {
	s.mu.Lock()
	delete(s.applied, paymentID)
	s.mu.Unlock()
}

// Applied возвращает применённый терминальный статус платежа, если он есть.
func (s *Service) Applied(paymentID string) (models.PaymentStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.applied[paymentID]
	return st, ok
}

// Watch запускает poll-канал платежа: каждые pollInterval платёж
// перечитывается из хранилища. Повторный вызов для того же платежа — no-op.
func (s *Service) Watch(ctx context.Context, paymentID string) {
	s.mu.Lock()
	if _, done := s.applied[paymentID]; done {
		s.mu.Unlock()
		return
	}
	if _, exists := s.watchers[paymentID]; exists {
		s.mu.Unlock()
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	s.watchers[paymentID] = cancel
	s.mu.Unlock()

	go s.poll(wctx, paymentID)
}

func (s *Service) poll(ctx context.Context, paymentID string) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payment, err := s.repo.GetPayment(ctx, paymentID)
			if err != nil {
				s.log.Error("poll channel failed to read payment",
					slog.String("payment_id", paymentID), sl.Err(err))
				continue
			}
			if payment == nil {
				s.stopWatcher(paymentID)
				return
			}
			if payment.Status.IsTerminal() {
				if err := s.ApplyTransition(ctx, paymentID, payment.Status, payment.RejectionReason); err != nil {
					s.log.Error("poll channel failed to apply transition",
						slog.String("payment_id", paymentID), sl.Err(err))
				}
			}
		}
	}
}

// stopWatcher сворачивает poll-таймер платежа. Вызывается тем же путём,
// который применяет терминальный переход, чтобы не текли таймеры.
func (s *Service) stopWatcher(paymentID string) {
	s.mu.Lock()
	cancel, ok := s.watchers[paymentID]
	if ok {
		delete(s.watchers, paymentID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Watching сообщает, есть ли активный poll-канал для платежа.
func (s *Service) Watching(paymentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watchers[paymentID]
	return ok
}

// RunPushChannel подписывает reconciler на очередь событий статусов —
// push-канал. Каждое событие проходит через ApplyTransition с теми же
// гарантиями идемпотентности, что и у poll-канала.
func (s *Service) RunPushChannel(ctx context.Context, ch *amqp.Channel) error {
	return rabbitmq.ConsumerMessage(ctx, ch, rabbitmq.StatusQueue, func(body []byte) error {
		return s.HandleStatusEvent(ctx, body)
	})
}

// HandleStatusEvent обрабатывает одно push-событие.
func (s *Service) HandleStatusEvent(ctx context.Context, body []byte) error {
	const op = "reconciler.HandleStatusEvent"
	var event models.StatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	status, ok := models.NormalizeStatus(event.Status)
	if !ok {
		s.log.Warn("push channel got unknown status",
			slog.String("payment_id", event.PaymentID),
			slog.String("status", event.Status))
		return nil
	}
	return s.ApplyTransition(ctx, event.PaymentID, status, event.Reason)
}

// ResumePending восстанавливает poll-каналы для всех ожидающих платежей.
// Вызывается при старте процесса, чтобы рестарт не оставил платежи без
// наблюдателя.
func (s *Service) ResumePending(ctx context.Context) error {
	const op = "reconciler.ResumePending"
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, p := range pending {
		s.Watch(ctx, p.ID)
	}
	if len(pending) > 0 {
		s.log.Info("resumed watchers for pending payments", slog.Int("count", len(pending)))
	}
	return nil
}
