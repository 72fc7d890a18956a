// Package pix генерирует платёжные QR-коды PIX.
//
// Render никогда не возвращает ошибку: пустой QR-код для пользователя хуже,
// чем код-заглушка, поэтому при сбое кодирования возвращается явно
// помеченный fallback-код.
package pix

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// MaxPayloadLen — порог длины дескриптора; более длинные дескрипторы
// сокращаются до минимальной тройки {id, amount, date}.
const MaxPayloadLen = 500

// FallbackPayload — содержимое QR-кода при сбое кодирования.
const FallbackPayload = "Erro ao gerar QR code. Por favor, tente novamente."

const qrImageSize = 256

// Descriptor — машиночитаемое описание платежа, зашиваемое в QR-код.
type Descriptor struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// BuildPayload формирует JSON-дескриптор платежа для QR-кода.
func BuildPayload(paymentID string, amountCents int64, createdAt time.Time, description string) string {
	d := Descriptor{
		ID:          paymentID,
		AmountCents: amountCents,
		Date:        createdAt.Format("2006-01-02"),
		Description: description,
	}
	body, err := json.Marshal(d)
	if err != nil {
		// Marshal на плоской структуре не падает, но на всякий случай
		// возвращаем минимально пригодный дескриптор.
		return fmt.Sprintf(`{"id":%q,"amount":%d}`, paymentID, amountCents)
	}
	return string(body)
}

// Render кодирует payload в PNG QR-код и возвращает итоговый payload
// и изображение в base64. Дескрипторы длиннее MaxPayloadLen сокращаются
// до тройки {id, amount, date}; не-JSON обрезается. При сбое кодирования
// возвращается fallback-код.
func Render(payload string) (string, string) {
	qrText := payload
	if len(payload) > MaxPayloadLen {
		qrText = shrink(payload)
	}

	png, err := qrcode.Encode(qrText, qrcode.Low, qrImageSize)
	if err == nil {
		return qrText, base64.StdEncoding.EncodeToString(png)
	}

	png, err = qrcode.Encode(FallbackPayload, qrcode.Low, qrImageSize)
	if err != nil {
		// Кодирование короткой ASCII-строки не падает; если упало,
		// отдаём текст заглушки без изображения.
		return FallbackPayload, ""
	}
	return FallbackPayload, base64.StdEncoding.EncodeToString(png)
}

func shrink(payload string) string {
	var d Descriptor
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return payload[:MaxPayloadLen] + "..."
	}
	d.Description = ""
	if d.Date == "" {
		d.Date = time.Now().Format("2006-01-02")
	}
	body, err := json.Marshal(d)
	if err != nil {
		return payload[:MaxPayloadLen] + "..."
	}
	return string(body)
}
