package domain

import (
	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys for payment events.
const (
	PaymentCompletedRoutingKey = "payments.payment.completed"
	PaymentFailedRoutingKey    = "payments.payment.failed"
)

// PaymentCompleted is raised when a pending payment settles successfully.
type PaymentCompleted struct {
	sharedDomain.BaseEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      PaymentType     `json:"type"`
	Tokens    int64           `json:"tokens"`
}

func NewPaymentCompleted(paymentID, userID uuid.UUID, amount decimal.Decimal, paymentType PaymentType, tokens int64) *PaymentCompleted {
	return &PaymentCompleted{
		BaseEvent: sharedDomain.NewBaseEvent(paymentID, "payment", PaymentCompletedRoutingKey),
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Type:      paymentType,
		Tokens:    tokens,
	}
}

// PaymentFailed is raised when a pending payment fails at the gateway.
type PaymentFailed struct {
	sharedDomain.BaseEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      PaymentType     `json:"type"`
	Reason    string          `json:"reason"`
}

func NewPaymentFailed(paymentID, userID uuid.UUID, amount decimal.Decimal, paymentType PaymentType, reason string) *PaymentFailed {
	return &PaymentFailed{
		BaseEvent: sharedDomain.NewBaseEvent(paymentID, "payment", PaymentFailedRoutingKey),
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Type:      paymentType,
		Reason:    reason,
	}
}
