package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// PaymentInfo is the gateway's authoritative view of a payment.
type PaymentInfo struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	TransactionAmount float64     `json:"transaction_amount"`
	PaymentMethodID   string      `json:"payment_method_id"`
	ExternalReference string      `json:"external_reference"`
	DateCreated       string      `json:"date_created"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GetPayment fetches payment details from the gateway. The webhook body only
// carries an id; everything trusted comes from this call.
func (c *Client) GetPayment(ctx context.Context, id string) (*PaymentInfo, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway payment lookup failed: %s (%d)", string(body), res.StatusCode)
	}

	var info PaymentInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse gateway response: %w", err)
	}
	return &info, nil
}
