package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletRepository mutates balances with single atomic statements. There is
// no load-modify-save cycle: concurrent debits must never drive a balance
// below zero.
type WalletRepository interface {
	// Balance returns the user's current token balance.
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)

	// TryDebit atomically deducts amount if the balance covers it. It
	// returns ok=false and the current balance, unchanged, otherwise.
	TryDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (ok bool, balance decimal.Decimal, err error)

	// DebitClamped atomically deducts amount, clamping the result at zero,
	// and returns the new balance.
	DebitClamped(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)

	// Credit atomically adds amount and returns the new balance.
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

// MessageRepository persists chat messages and their accounting state.
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	// FindByID returns the message, or nil when it does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// CountFree counts the user's messages charged against the free quota.
	CountFree(ctx context.Context, userID uuid.UUID) (int, error)
	// MarkUnlocked persists the unlock transition.
	MarkUnlocked(ctx context.Context, message *Message) error
}
