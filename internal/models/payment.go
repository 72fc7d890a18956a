// Package models содержит доменные структуры платежей и подписок,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// PaymentStatus описывает состояние платежа в его жизненном цикле.
type PaymentStatus string

const (
	// StatusPending — платёж создан и ждёт терминального решения.
	StatusPending PaymentStatus = "pending"
	// StatusApproved — канонический терминальный статус успешной оплаты.
	StatusApproved PaymentStatus = "approved"
	// StatusRejected — платёж отклонён администратором или свипером.
	StatusRejected PaymentStatus = "rejected"
	// StatusCancelled — платёж отменён пользователем.
	StatusCancelled PaymentStatus = "cancelled"
)

// NormalizeStatus приводит входящий статус к каноническому значению.
// Устаревший статус "pago" и португальские варианты из старых данных
// принимаются на входе, но никогда не сохраняются.
func NormalizeStatus(raw string) (PaymentStatus, bool) {
	switch raw {
	case "pending", "pendente":
		return StatusPending, true
	case "approved", "pago", "aprovado", "paid":
		return StatusApproved, true
	case "rejected", "rejeitado":
		return StatusRejected, true
	case "cancelled", "cancelado":
		return StatusCancelled, true
	}
	return "", false
}

// IsTerminal сообщает, является ли статус терминальным.
// Из терминального статуса переходы запрещены.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Payment представляет платёж за план подписки.
// Поле ExpiresAt неизменяемо после создания: CreatedAt + 24 часа.
type Payment struct {
	ID              string        `json:"id"`
	UserUID         string        `json:"user_uid"`
	UserName        string        `json:"user_name,omitempty"`
	UserEmail       string        `json:"user_email,omitempty"`
	PlanID          string        `json:"plan_id"`
	AmountCents     int64         `json:"amount_cents"`
	Description     string        `json:"description"`
	Status          PaymentStatus `json:"status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	QRPayload       string        `json:"qr_payload,omitempty"`
	QRImage         string        `json:"qr_image,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
}

// Expired сообщает, истёк ли платёж к моменту now.
// Граница expires_at == now уже считается истёкшей.
func (p *Payment) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// StatusEvent — событие изменения статуса платежа, публикуемое
// в обменник payments и доставляемое reconciler-у как push-канал.
type StatusEvent struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// DummyPaymentCreate используется для приёма данных из JSON-запроса
// на создание платежа.
type DummyPaymentCreate struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// DummyDecision используется для приёма решения администратора
// или уведомления платёжного шлюза по платежу.
type DummyDecision struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
	Reason    string `json:"reason,omitempty"`
}
