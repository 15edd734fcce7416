// Package queries contains the wallet read operations. Reads can be
// configured to fail open: a broken balance or quota lookup degrades the
// experience instead of blocking it.
package queries

import (
	"context"

	"github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetBalanceQuery requests a user's token balance.
type GetBalanceQuery struct {
	UserID uuid.UUID
}

// BalanceResult contains a user's token balance.
type BalanceResult struct {
	UserID  uuid.UUID
	Balance decimal.Decimal
}

// GetBalanceHandler handles the GetBalanceQuery.
type GetBalanceHandler struct {
	walletRepo domain.WalletRepository
	failOpen   bool
}

// NewGetBalanceHandler creates a new GetBalanceHandler.
func NewGetBalanceHandler(walletRepo domain.WalletRepository, failOpen bool) *GetBalanceHandler {
	return &GetBalanceHandler{walletRepo: walletRepo, failOpen: failOpen}
}

// Handle executes the GetBalanceQuery. With fail-open enabled a storage
// failure reports a zero balance instead of an error.
func (h *GetBalanceHandler) Handle(ctx context.Context, query GetBalanceQuery) (*BalanceResult, error) {
	balance, err := h.walletRepo.Balance(ctx, query.UserID)
	if err != nil {
		if !h.failOpen {
			return nil, err
		}
		balance = decimal.Zero
	}

	return &BalanceResult{UserID: query.UserID, Balance: balance}, nil
}
