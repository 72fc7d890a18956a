// Package lifecycle содержит контроллер жизненного цикла платежа:
// создание платежа с QR-кодом и повторное открытие ожидающего платежа.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/lib/pix"
	"github.com/magabrotheeeer/gastropass/internal/models"
	"github.com/magabrotheeeer/gastropass/internal/plans"
)

// PendingWindow — срок жизни ожидающего платежа; expires_at = created_at + 24h
// и неизменяем после создания.
const PendingWindow = 24 * time.Hour

// PaymentRepository определяет методы работы с платежами в хранилище.
type PaymentRepository interface {
	// CreatePayment пишет платёж и указатель пользователя одной транзакцией.
	CreatePayment(ctx context.Context, p *models.Payment, pp *models.PendingPayment) error
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	FindPendingByUser(ctx context.Context, userUID string) (*models.Payment, error)
	FindLatestRejectedByUser(ctx context.Context, userUID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Payment, error)
	ListPending(ctx context.Context) ([]*models.Payment, error)
}

// UserRepository определяет методы работы с пользователями.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	SetPendingPointer(ctx context.Context, userUID string, pp *models.PendingPayment) error
}

// Watcher запускает каналы сверки для ожидающего платежа.
type Watcher interface {
	Watch(ctx context.Context, paymentID string)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Service реализует контроллер жизненного цикла платежей.
type Service struct {
	payments PaymentRepository
	users    UserRepository
	watcher  Watcher
	cache    Cache
	log      *slog.Logger
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(payments PaymentRepository, users UserRepository, watcher Watcher, cache Cache, log *slog.Logger) *Service {
	return &Service{
		payments: payments,
		users:    users,
		watcher:  watcher,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create создаёт ожидающий платёж за план. Если у пользователя уже есть
// живой ожидающий платёж, возвращает errs.ErrPendingPaymentExists —
// вызывающий должен использовать Reopen.
func (s *Service) Create(ctx context.Context, userUID, planID string) (*models.Payment, error) {
	const op = "lifecycle.Create"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%s: user not found: %s", op, userUID)
	}

	now := s.now()
	existing, err := s.payments.FindPendingByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil && !existing.Expired(now) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrPendingPaymentExists)
	}

	plan, err := plans.Get(planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payment := &models.Payment{
		ID:          uuid.New().String(),
		UserUID:     user.UID,
		UserName:    user.Username,
		UserEmail:   user.Email,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents,
		Description: fmt.Sprintf("Assinatura GastroPass — Plano %s", plan.Name),
		Status:      models.StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(PendingWindow),
	}
	payload := pix.BuildPayload(payment.ID, payment.AmountCents, now, payment.Description)
	payment.QRPayload, payment.QRImage = pix.Render(payload)

	if err := s.payments.CreatePayment(ctx, payment, pointerOf(payment)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created pending payment",
		slog.String("payment_id", payment.ID),
		slog.String("user_uid", userUID),
		slog.String("plan_id", planID))

	s.watcher.Watch(ctx, payment.ID)
	return payment, nil
}

// Reopen возвращает живой ожидающий платёж пользователя, попутно
// восстанавливая денормализованный указатель из авторитетной записи.
// Истёкший платёж — errs.ErrPaymentExpired (нужно создавать новый),
// последний отклонённый — errs.RejectedError с сохранённой причиной,
// ни одного платежа — errs.ErrPaymentNotFound.
func (s *Service) Reopen(ctx context.Context, userUID string) (*models.Payment, error) {
	const op = "lifecycle.Reopen"

	pending, err := s.payments.FindPendingByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pending != nil {
		if pending.Expired(s.now()) {
			return nil, fmt.Errorf("%s: %w", op, errs.ErrPaymentExpired)
		}
		if err := s.users.SetPendingPointer(ctx, userUID, pointerOf(pending)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("reopened pending payment",
			slog.String("payment_id", pending.ID),
			slog.String("user_uid", userUID))
		s.watcher.Watch(ctx, pending.ID)
		return pending, nil
	}

	rejected, err := s.payments.FindLatestRejectedByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rejected != nil {
		return nil, fmt.Errorf("%s: %w", op, &errs.RejectedError{Reason: rejected.RejectionReason})
	}

	return nil, fmt.Errorf("%s: %w", op, errs.ErrPaymentNotFound)
}

// GetStatus возвращает текущий снапшот платежа, используя кеш или хранилище.
// Reconciler инвалидирует кеш при каждом терминальном переходе.
func (s *Service) GetStatus(ctx context.Context, paymentID string) (*models.Payment, error) {
	const op = "lifecycle.GetStatus"

	var cached *models.Payment
	cacheKey := "payment:" + paymentID
	found, err := s.cache.Get(cacheKey, &cached)
	if err == nil && found {
		return cached, nil
	}

	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payment == nil {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrPaymentNotFound)
	}

	if err := s.cache.Set(cacheKey, payment, 30*time.Second); err != nil {
		s.log.Warn("failed to cache payment", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return payment, nil
}

// ListByUser возвращает платежи пользователя с пагинацией.
func (s *Service) ListByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Payment, error) {
	return s.payments.ListByUser(ctx, userUID, limit, offset)
}

// ListPending возвращает все ожидающие платежи для административной таблицы.
func (s *Service) ListPending(ctx context.Context) ([]*models.Payment, error) {
	return s.payments.ListPending(ctx)
}

func pointerOf(p *models.Payment) *models.PendingPayment {
	return &models.PendingPayment{
		PaymentID:   p.ID,
		PlanID:      p.PlanID,
		Status:      string(p.Status),
		AmountCents: p.AmountCents,
		QRPayload:   p.QRPayload,
		CreatedAt:   p.CreatedAt,
		ExpiresAt:   p.ExpiresAt,
	}
}
