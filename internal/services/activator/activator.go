// Package activator содержит бизнес-логику активации подписки.
// Поля подписки пользователя, указатель на ожидающий платёж и баланс
// купонов изменяются только здесь: reconciler и свипер приходят сюда
// с уже принятым терминальным решением.
package activator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gastropass/internal/plans"
)

// UserRepository определяет методы записи подписки пользователя.
type UserRepository interface {
	// ActivateSubscription записывает активную платную подписку,
	// очищает указатель на ожидающий платёж и выставляет купоны плана.
	ActivateSubscription(ctx context.Context, userUID, planID string, start, end time.Time, coupons int) error
	// ResetToFree возвращает пользователя на бесплатный план
	// и восстанавливает купоны.
	ResetToFree(ctx context.Context, userUID string, start time.Time) error
}

// Service реализует активацию, отклонение и отмену подписки.
type Service struct {
	repo UserRepository
	log  *slog.Logger
	now  func() time.Time
}

// New создает новый экземпляр Service.
func New(repo UserRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Activate активирует план пользователя после одобрения платежа.
// Дата окончания считается календарно: годовой план — плюс год,
// остальные — плюс 30 дней.
func (s *Service) Activate(ctx context.Context, userUID, planID string, approvedAt time.Time) error {
	const op = "activator.Activate"
	if _, err := plans.Get(planID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	end := plans.EndDate(planID, approvedAt)
	coupons := plans.CouponGrant(planID)

	if err := s.repo.ActivateSubscription(ctx, userUID, planID, approvedAt, end, coupons); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription activated",
		slog.String("user_uid", userUID),
		slog.String("plan_id", planID),
		slog.Time("end_date", end))
	return nil
}

// Reject переводит пользователя на бесплатный план после отклонения
// платежа. Причина сохраняется в записи платежа и нужна только для
// клиентского сообщения.
func (s *Service) Reject(ctx context.Context, userUID, reason string) error {
	const op = "activator.Reject"
	if err := s.repo.ResetToFree(ctx, userUID, s.now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription reverted to free plan after rejection",
		slog.String("user_uid", userUID),
		slog.String("reason", reason))
	return nil
}

// Cancel переводит пользователя на бесплатный план по его собственной
// инициативе. Итоговое состояние то же, что у Reject, но триггер и
// сообщение пользователю другие.
func (s *Service) Cancel(ctx context.Context, userUID string) error {
	const op = "activator.Cancel"
	if err := s.repo.ResetToFree(ctx, userUID, s.now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription cancelled by user", slog.String("user_uid", userUID))
	return nil
}
