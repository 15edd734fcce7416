// Package domain implements the token accounting rules: message costs, the
// free-message quota and the locked-message unlock flow.
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// FreeMessageLimit is the fixed number of zero-cost messages each user gets
// before paid accounting applies.
const FreeMessageLimit = 10

var (
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotOwner        = errors.New("user does not own this message")
)

// InsufficientBalanceError reports a failed debit as structured data so the
// caller can render an upsell instead of a generic failure. The balance is
// never mutated when this error is returned.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s", e.Required, e.Available)
}

// FreeMessageStatus summarizes a user's free-message quota.
type FreeMessageStatus struct {
	HasFreeMessages bool
	Used            int
	Remaining       int
	Limit           int
}

// NewFreeMessageStatus derives the quota status from the used count.
func NewFreeMessageStatus(used int) FreeMessageStatus {
	remaining := FreeMessageLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return FreeMessageStatus{
		HasFreeMessages: remaining > 0,
		Used:            used,
		Remaining:       remaining,
		Limit:           FreeMessageLimit,
	}
}
