// Package domain models the payment ledger. Payments are append-only entries
// whose status only ever moves pending -> completed or pending -> failed;
// settling a payment is what credits purchased tokens, exactly once.
package domain

import (
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotPending   = errors.New("payment is not pending")
	ErrInvalidAmount       = errors.New("payment amount must be positive")
	ErrEmptyIdempotencyKey = errors.New("idempotency key cannot be empty")
	ErrDuplicatePayment    = errors.New("payment with this idempotency key already exists")
)

// PaymentType classifies what the payment bought.
type PaymentType string

const (
	TypeTokenPurchase PaymentType = "token_purchase"
	TypeSubscription  PaymentType = "subscription"
	TypeTip           PaymentType = "tip"
	TypeAutoTopup     PaymentType = "auto_topup"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// Payment is one ledger entry.
type Payment struct {
	sharedDomain.BaseAggregateRoot
	userID         uuid.UUID
	amount         decimal.Decimal
	currency       string
	paymentType    PaymentType
	status         PaymentStatus
	tokenAmount    int64
	bonusTokens    int64
	idempotencyKey string
	intentID       string
	failureReason  string
	completedAt    *time.Time
}

// NewPayment creates a pending payment.
func NewPayment(
	userID uuid.UUID,
	amount decimal.Decimal,
	currency string,
	paymentType PaymentType,
	tokenAmount int64,
	bonusTokens int64,
	idempotencyKey string,
) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, ErrEmptyIdempotencyKey
	}
	if currency == "" {
		currency = "USD"
	}

	return &Payment{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		amount:            amount,
		currency:          currency,
		paymentType:       paymentType,
		status:            StatusPending,
		tokenAmount:       tokenAmount,
		bonusTokens:       bonusTokens,
		idempotencyKey:    idempotencyKey,
	}, nil
}

// RehydratePayment recreates a payment from persisted state.
func RehydratePayment(
	id uuid.UUID,
	userID uuid.UUID,
	amount decimal.Decimal,
	currency string,
	paymentType PaymentType,
	status PaymentStatus,
	tokenAmount int64,
	bonusTokens int64,
	idempotencyKey string,
	intentID string,
	failureReason string,
	completedAt *time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) *Payment {
	return &Payment{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		),
		userID:         userID,
		amount:         amount,
		currency:       currency,
		paymentType:    paymentType,
		status:         status,
		tokenAmount:    tokenAmount,
		bonusTokens:    bonusTokens,
		idempotencyKey: idempotencyKey,
		intentID:       intentID,
		failureReason:  failureReason,
		completedAt:    completedAt,
	}
}

func (p *Payment) UserID() uuid.UUID       { return p.userID }
func (p *Payment) Amount() decimal.Decimal { return p.amount }
func (p *Payment) Currency() string        { return p.currency }
func (p *Payment) Type() PaymentType       { return p.paymentType }
func (p *Payment) Status() PaymentStatus   { return p.status }
func (p *Payment) TokenAmount() int64      { return p.tokenAmount }
func (p *Payment) BonusTokens() int64      { return p.bonusTokens }
func (p *Payment) IdempotencyKey() string  { return p.idempotencyKey }
func (p *Payment) IntentID() string        { return p.intentID }
func (p *Payment) FailureReason() string   { return p.failureReason }
func (p *Payment) CompletedAt() *time.Time { return p.completedAt }
func (p *Payment) IsPending() bool         { return p.status == StatusPending }

// TotalTokens is the token amount plus bonus credited on completion.
func (p *Payment) TotalTokens() int64 {
	return p.tokenAmount + p.bonusTokens
}

// AttachIntent records the gateway intent backing this payment.
func (p *Payment) AttachIntent(intentID string) {
	p.intentID = intentID
	p.Touch()
}

// Complete transitions a pending payment to completed.
func (p *Payment) Complete() error {
	if p.status != StatusPending {
		return ErrPaymentNotPending
	}
	now := time.Now().UTC()
	p.status = StatusCompleted
	p.completedAt = &now
	p.Touch()

	p.AddDomainEvent(NewPaymentCompleted(p.ID(), p.userID, p.amount, p.paymentType, p.TotalTokens()))
	return nil
}

// Fail transitions a pending payment to failed.
func (p *Payment) Fail(reason string) error {
	if p.status != StatusPending {
		return ErrPaymentNotPending
	}
	p.status = StatusFailed
	p.failureReason = reason
	p.Touch()

	p.AddDomainEvent(NewPaymentFailed(p.ID(), p.userID, p.amount, p.paymentType, reason))
	return nil
}
