// Package paymentprovider реализует клиент платёжного шлюза PIX.
// Реальная интеграция вне рамок сервиса: шлюз симулируется, но клиент
// держит тот же HTTP-контракт, что и боевой.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент платёжного шлюза.
func NewClient(shopID, secretKey, apiURL string) *Client {
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Refund запрашивает у шлюза возврат средств по уже оплаченному платежу.
// Вызывается до финализации отклонения: неуспешный возврат прерывает
// отклонение, чтобы администратор мог повторить операцию.
func (c *Client) Refund(ctx context.Context, paymentID string, amountCents int64) error {
	req, err := c.newRequest(ctx, "POST", "/refunds", RefundRequest{
		PaymentID:   paymentID,
		AmountCents: amountCents,
	})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("unexpected status: " + resp.Status)
	}

	var refundResp RefundResponse
	if err := json.NewDecoder(resp.Body).Decode(&refundResp); err != nil {
		return err
	}
	if refundResp.Status != "succeeded" {
		return errors.New("refund not completed: " + refundResp.Status)
	}
	return nil
}
