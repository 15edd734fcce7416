// Package gateway adapts the external crypto payment provider. The rest of
// the payments context only sees the Gateway interface; the HTTP client and
// the mock are interchangeable.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrIntentNotFound     = errors.New("payment intent not found")
	ErrInvalidSignature   = errors.New("webhook signature verification failed")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// IntentStatus is the provider-side state of a payment intent.
type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentProcessing IntentStatus = "processing"
	IntentSucceeded  IntentStatus = "succeeded"
	IntentFailed     IntentStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s IntentStatus) Terminal() bool {
	return s == IntentSucceeded || s == IntentFailed
}

// CreateIntentRequest asks the provider to open a payment intent.
type CreateIntentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
}

// Intent is a provider payment intent.
type Intent struct {
	ID          string       `json:"id"`
	Status      IntentStatus `json:"status"`
	Address     string       `json:"address"`
	CheckoutURL string       `json:"checkout_url"`
	QRCode      string       `json:"qr_code"`
}

// Gateway is the payment provider contract.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error)
	VerifyWebhook(payload []byte, signature string) error
}
