// Package sweeper содержит периодическую задачу, которая принудительно
// отклоняет ожидающие платежи с истёкшим сроком. Переход идёт через общий
// вход reconciler-а, поэтому гонка с живыми каналами разрешается той же
// защёлкой: побеждает ровно один исход.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

// ExpiredReason — причина отклонения, сохраняемая свипером.
const ExpiredReason = "expired"

// PaymentRepository определяет выборку истёкших ожидающих платежей.
type PaymentRepository interface {
	ListExpiredPending(ctx context.Context, now time.Time) ([]*models.Payment, error)
}

// Reconciler применяет терминальный переход к платежу.
type Reconciler interface {
	ApplyTransition(ctx context.Context, paymentID string, observed models.PaymentStatus, reason string) error
}

// Service реализует свипер истёкших платежей.
type Service struct {
	repo     PaymentRepository
	rec      Reconciler
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(repo PaymentRepository, rec Reconciler, log *slog.Logger, interval time.Duration) *Service {
	return &Service{
		repo:     repo,
		rec:      rec,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run выполняет проход сразу и затем по таймеру, пока не отменён контекст.
func (s *Service) Run(ctx context.Context) {
	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Service) runSweep(ctx context.Context) {
	s.log.Info("starting sweep of expired pending payments")
	expired, err := s.repo.ListExpiredPending(ctx, s.now())
	if err != nil {
		s.log.Error("failed to list expired payments", sl.Err(err))
		return
	}
	if len(expired) == 0 {
		s.log.Info("no expired pending payments found")
		return
	}
	s.log.Info("found expired pending payments", slog.Int("count", len(expired)))
	for _, p := range expired {
		err := s.rec.ApplyTransition(ctx, p.ID, models.StatusRejected, ExpiredReason)
		if err != nil {
			s.log.Error("failed to force-reject expired payment",
				slog.String("payment_id", p.ID), sl.Err(err))
		}
	}
}
