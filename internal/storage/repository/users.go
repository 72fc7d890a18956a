package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/gastropass/internal/models"
)

// GetUser возвращает пользователя с подпиской, указателем на ожидающий
// платёж и балансом купонов.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, username, email, plan_id, subscription_status,
			  start_date, end_date, payment_pending, free_coupons, has_active_subscription
			  FROM users WHERE uid = $1`
	var u models.User
	var endDate sql.NullTime
	var pointer []byte
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&u.UID, &u.Username,
		&u.Email, &u.Subscription.PlanID, &u.Subscription.Status,
		&u.Subscription.StartDate, &endDate, &pointer, &u.FreeCoupons,
		&u.HasActiveSubscription)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if endDate.Valid {
		u.Subscription.EndDate = &endDate.Time
	}
	if len(pointer) > 0 {
		var pp models.PendingPayment
		if err := json.Unmarshal(pointer, &pp); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.PaymentPending = &pp
	}
	return &u, nil
}

// ActivateSubscription записывает активную платную подписку пользователя,
// очищает указатель на ожидающий платёж и выставляет баланс купонов плана.
// Поля подписки пользователя меняет только активатор.
func (s *Storage) ActivateSubscription(ctx context.Context, userUID, planID string, start, end time.Time, coupons int) error {
	const op = "storage.ActivateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET plan_id = $2, subscription_status = $3,
			  start_date = $4, end_date = $5, payment_pending = NULL,
			  free_coupons = $6, has_active_subscription = TRUE
			  WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, userUID, planID,
		models.SubscriptionActive, start, end, coupons)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: user not found: %s", op, userUID)
	}
	return nil
}

// ResetToFree возвращает пользователя на бесплатный план: подписка free
// без даты окончания, указатель очищен, купоны восстановлены до трёх.
func (s *Storage) ResetToFree(ctx context.Context, userUID string, start time.Time) error {
	const op = "storage.ResetToFree"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET plan_id = $2, subscription_status = $3,
			  start_date = $4, end_date = NULL, payment_pending = NULL,
			  free_coupons = $5, has_active_subscription = FALSE
			  WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, userUID, models.FreePlanID,
		models.SubscriptionActive, start, models.FreeCouponsDefault)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: user not found: %s", op, userUID)
	}
	return nil
}

// SetPendingPointer обновляет денормализованный указатель пользователя
// из авторитетной записи платежа. Используется reopen для самовосстановления
// разъехавшегося указателя.
func (s *Storage) SetPendingPointer(ctx context.Context, userUID string, pp *models.PendingPayment) error {
	const op = "storage.SetPendingPointer"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var pointer []byte
	if pp != nil {
		var err error
		pointer, err = json.Marshal(pp)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE users SET payment_pending = $2 WHERE uid = $1`, userUID, pointer)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RedeemCoupon списывает один купон условным декрементом: обычный
// read-modify-write небезопасен при одновременном списании с нескольких
// устройств. Возвращает остаток и false, если купонов не осталось.
func (s *Storage) RedeemCoupon(ctx context.Context, userUID string) (int, bool, error) {
	const op = "storage.RedeemCoupon"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET free_coupons = free_coupons - 1
			  WHERE uid = $1 AND free_coupons > 0
			  RETURNING free_coupons`
	var remaining int
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&remaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return remaining, true, nil
}
