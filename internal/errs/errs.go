// Package errs определяет ошибки бизнес-логики, по которым ветвятся
// обработчики: конфликт ожидающего платежа, истечение, отклонение,
// отсутствие платежа и истёкшая сессия.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrPendingPaymentExists — у пользователя уже есть живой ожидающий
	// платёж; вместо создания нового нужно вызывать reopen.
	ErrPendingPaymentExists = errors.New("pending payment already exists")

	// ErrPaymentExpired — единственный найденный ожидающий платёж истёк.
	ErrPaymentExpired = errors.New("pending payment expired")

	// ErrPaymentNotFound — у пользователя нет ни одного платежа.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrSessionExpired — токен сессии недействителен или истёк.
	// Всегда поднимается до вызывающего и завершает сессию, без повторов.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoCouponsLeft — бесплатные купоны пользователя закончились.
	ErrNoCouponsLeft = errors.New("no free coupons left")
)

// RejectedError возвращается, когда последний терминальный платёж
// пользователя был отклонён; несёт сохранённую причину для показа клиенту.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment rejected: %s", e.Reason)
}
