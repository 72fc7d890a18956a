// Package models содержит доменную модель пользователя портала,
// включающую подписку, указатель на ожидающий платёж и баланс купонов.
package models

import "time"

// Статусы подписки пользователя.
const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// FreePlanID — идентификатор бесплатного плана.
const FreePlanID = "free"

// FreeCouponsDefault — баланс купонов, выдаваемый при переводе
// пользователя на бесплатный план.
const FreeCouponsDefault = 3

// Subscription описывает текущую подписку пользователя.
// Для бесплатного плана EndDate равен nil и игнорируется.
type Subscription struct {
	PlanID    string
	Status    string
	StartDate time.Time
	EndDate   *time.Time
}

// PendingPayment — денормализованная копия ожидающего платежа в документе
// пользователя. Источником истины остаётся запись Payment; указатель
// существует только чтобы клиент мог отрисовать ожидающий платёж без
// второго запроса.
type PendingPayment struct {
	PaymentID   string    `json:"payment_id"`
	PlanID      string    `json:"plan_id"`
	Status      string    `json:"status"`
	AmountCents int64     `json:"amount_cents"`
	QRPayload   string    `json:"qr_payload"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// User представляет зарегистрированного пользователя портала.
type User struct {
	UID                   string
	Username              string
	Email                 string
	Subscription          Subscription
	PaymentPending        *PendingPayment
	FreeCoupons           int
	HasActiveSubscription bool
}
