package paymentprovider

import "time"

// RefundRequest представляет запрос на возврат средств.
type RefundRequest struct {
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
}

// RefundResponse представляет ответ шлюза на запрос возврата.
type RefundResponse struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Status    string    `json:"status"` // например "succeeded"
	CreatedAt time.Time `json:"created_at"`
}
