package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/gastropass/internal/models"
)

const paymentColumns = `id, user_uid, user_name, user_email, plan_id, amount_cents,
		description, status, COALESCE(rejection_reason, ''), qr_payload, qr_image,
		created_at, expires_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.UserUID, &p.UserName, &p.UserEmail, &p.PlanID,
		&p.AmountCents, &p.Description, &p.Status, &p.RejectionReason,
		&p.QRPayload, &p.QRImage, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment сохраняет платёж и указатель пользователя на ожидающий
// платёж в одной транзакции, чтобы сбой между двумя записями не оставил
// висячий указатель.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment, pp *models.PendingPayment) error {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO payments (id, user_uid, user_name, user_email, plan_id,
			  amount_cents, description, status, qr_payload, qr_image, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = tx.ExecContext(ctx, query, p.ID, p.UserUID, p.UserName, p.UserEmail,
		p.PlanID, p.AmountCents, p.Description, p.Status, p.QRPayload, p.QRImage,
		p.CreatedAt, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pointer, err := json.Marshal(pp)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET payment_pending = $2 WHERE uid = $1`, p.UserUID, pointer)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPayment возвращает платёж по ID.
func (s *Storage) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// FindPendingByUser возвращает самый свежий ожидающий платёж пользователя.
// Контроллер жизненного цикла гарантирует не больше одного живого pending
// на пользователя, но запрос на всякий случай берёт последний по created_at.
func (s *Storage) FindPendingByUser(ctx context.Context, userUID string) (*models.Payment, error) {
	const op = "storage.FindPendingByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE user_uid = $1 AND status = 'pending'
			  ORDER BY created_at DESC LIMIT 1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// FindLatestRejectedByUser возвращает последний отклонённый платёж пользователя.
func (s *Storage) FindLatestRejectedByUser(ctx context.Context, userUID string) (*models.Payment, error) {
	const op = "storage.FindLatestRejectedByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE user_uid = $1 AND status = 'rejected'
			  ORDER BY created_at DESC LIMIT 1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListByUser возвращает платежи пользователя с пагинацией.
func (s *Storage) ListByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Payment, error) {
	const op = "storage.ListByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE user_uid = $1
			  ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ListPending возвращает все ожидающие платежи для административной таблицы.
func (s *Storage) ListPending(ctx context.Context) ([]*models.Payment, error) {
	const op = "storage.ListPending"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE status = 'pending' ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ListExpiredPending возвращает ожидающие платежи, чей срок истёк к now.
// Граница expires_at == now считается истёкшей.
func (s *Storage) ListExpiredPending(ctx context.Context, now time.Time) ([]*models.Payment, error) {
	const op = "storage.ListExpiredPending"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE status = 'pending' AND expires_at <= $1
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// MarkTerminal переводит платёж из pending в терминальный статус.
// Первый писатель побеждает: возвращает false, если платёж уже не pending.
func (s *Storage) MarkTerminal(ctx context.Context, paymentID string, status models.PaymentStatus, reason string) (bool, error) {
	const op = "storage.MarkTerminal"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments SET status = $2, rejection_reason = NULLIF($3, '')
			  WHERE id = $1 AND status = 'pending'`
	res, err := s.DB.ExecContext(ctx, query, paymentID, status, reason)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected == 1, nil
}

// OverrideApproved переводит уже оплаченный платёж в rejected.
// Используется только административным путём после успешного возврата средств.
func (s *Storage) OverrideApproved(ctx context.Context, paymentID string, reason string) (bool, error) {
	const op = "storage.OverrideApproved"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments SET status = 'rejected', rejection_reason = NULLIF($2, '')
			  WHERE id = $1 AND status = 'approved'`
	res, err := s.DB.ExecContext(ctx, query, paymentID, reason)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected == 1, nil
}
