package commands

import (
	"context"
	"errors"

	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	"github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidCreditAmount = errors.New("credit amount must be positive")

// CreditTokensCommand contains the data needed to credit tokens to a user.
type CreditTokensCommand struct {
	UserID uuid.UUID
	Tokens decimal.Decimal
	Reason string
}

// CreditTokensResult contains the result of crediting tokens.
type CreditTokensResult struct {
	Balance decimal.Decimal
}

// CreditTokensHandler handles the CreditTokensCommand.
type CreditTokensHandler struct {
	walletRepo domain.WalletRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewCreditTokensHandler creates a new CreditTokensHandler.
func NewCreditTokensHandler(walletRepo domain.WalletRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *CreditTokensHandler {
	return &CreditTokensHandler{
		walletRepo: walletRepo,
		outboxRepo: outboxRepo,
		uow:        uow,
	}
}

// Handle executes the CreditTokensCommand.
func (h *CreditTokensHandler) Handle(ctx context.Context, cmd CreditTokensCommand) (*CreditTokensResult, error) {
	if !cmd.Tokens.IsPositive() {
		return nil, ErrInvalidCreditAmount
	}

	var result *CreditTokensResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		balance, err := h.walletRepo.Credit(txCtx, cmd.UserID, cmd.Tokens)
		if err != nil {
			return err
		}

		event := domain.NewTokensCredited(cmd.UserID, cmd.Tokens, balance, cmd.Reason)
		events := []sharedDomain.DomainEvent{event}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.UserID))

		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		if err := h.outboxRepo.SaveBatch(txCtx, msgs); err != nil {
			return err
		}

		result = &CreditTokensResult{Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
