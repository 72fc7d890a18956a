// Package benefits содержит логику погашения скидочных льгот.
// Пока у пользователя нет активного платного плана, каждое погашение
// списывает один бесплатный купон; с активным планом погашения
// безлимитны и счётчик не трогается.
package benefits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// UnlimitedRedemptions возвращается вместо остатка купонов,
// когда у пользователя активный платный план.
const UnlimitedRedemptions = -1

// UserRepository определяет методы чтения пользователя и списания купонов.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// RedeemCoupon выполняет условный декремент; false — купонов не осталось.
	RedeemCoupon(ctx context.Context, userUID string) (int, bool, error)
}

// Service реализует погашение льгот.
type Service struct {
	repo UserRepository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo UserRepository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Redeem погашает одну льготу пользователя. Возвращает остаток купонов
// или UnlimitedRedemptions при активном платном плане.
func (s *Service) Redeem(ctx context.Context, userUID string) (int, error) {
	const op = "benefits.Redeem"

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return 0, fmt.Errorf("%s: user not found: %s", op, userUID)
	}

	if user.HasActiveSubscription {
		return UnlimitedRedemptions, nil
	}

	remaining, redeemed, err := s.repo.RedeemCoupon(ctx, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !redeemed {
		return 0, fmt.Errorf("%s: %w", op, errs.ErrNoCouponsLeft)
	}
	s.log.Info("benefit redeemed",
		slog.String("user_uid", userUID),
		slog.Int("coupons_left", remaining))
	return remaining, nil
}
