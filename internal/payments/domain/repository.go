package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines payment ledger persistence. The idempotency key carries
// a unique index; Save surfaces ErrDuplicatePayment on a conflict so callers
// can treat a concurrent settle as already done.
type Repository interface {
	Save(ctx context.Context, payment *Payment) error
	// FindByID returns the payment, or nil when it does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindByIntentID returns the payment backing a gateway intent, or nil.
	FindByIntentID(ctx context.Context, intentID string) (*Payment, error)
	// FindByIdempotencyKey returns the payment with the given key, or nil.
	FindByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
}
