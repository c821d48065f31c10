package events

import (
	"encoding/json"
	"fmt"
)

const (
	RKPaymentApproved    = "payment.approved"
	RKPaymentRejected    = "payment.rejected"
	RKActivationRequired = "subscription.activation_required"
)

// PaymentOutcome is published once per genuine status transition; duplicate
// webhook deliveries never re-publish.
type PaymentOutcome struct {
	PaymentID string  `json:"payment_id"`
	UserID    string  `json:"user_id"`
	EventID   string  `json:"event_id,omitempty"`
	AcademyID string  `json:"academy_id,omitempty"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
	Method    string  `json:"method,omitempty"`
}

type ActivationRequired struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	AcademyID      string `json:"academy_id"`
}

func MustUnmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
