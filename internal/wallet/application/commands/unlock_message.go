package commands

import (
	"context"

	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	"github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnlockMessageCommand contains the data needed to unlock a locked message.
type UnlockMessageCommand struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
}

// UnlockMessageResult contains the result of unlocking a message.
type UnlockMessageResult struct {
	MessageID uuid.UUID
	Price     decimal.Decimal
	Balance   decimal.Decimal
}

// UnlockMessageHandler handles the UnlockMessageCommand. The debit is
// conditional: when the balance does not cover the price nothing is deducted
// and the caller gets a structured insufficient-balance error.
type UnlockMessageHandler struct {
	walletRepo  domain.WalletRepository
	messageRepo domain.MessageRepository
	outboxRepo  outbox.Repository
	uow         sharedApplication.UnitOfWork
}

// NewUnlockMessageHandler creates a new UnlockMessageHandler.
func NewUnlockMessageHandler(
	walletRepo domain.WalletRepository,
	messageRepo domain.MessageRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *UnlockMessageHandler {
	return &UnlockMessageHandler{
		walletRepo:  walletRepo,
		messageRepo: messageRepo,
		outboxRepo:  outboxRepo,
		uow:         uow,
	}
}

// Handle executes the UnlockMessageCommand.
func (h *UnlockMessageHandler) Handle(ctx context.Context, cmd UnlockMessageCommand) (*UnlockMessageResult, error) {
	var result *UnlockMessageResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		msg, err := h.messageRepo.FindByID(txCtx, cmd.MessageID)
		if err != nil {
			return err
		}
		if msg == nil {
			return domain.ErrMessageNotFound
		}
		if !msg.OwnedBy(cmd.UserID) {
			return domain.ErrNotOwner
		}
		if msg.UnlockedAt() != nil {
			return domain.ErrMessageAlreadyUnlocked
		}
		if !msg.IsLocked() {
			return domain.ErrMessageNotLocked
		}

		price := msg.LockPrice()

		ok, balance, err := h.walletRepo.TryDebit(txCtx, cmd.UserID, price)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.InsufficientBalanceError{Required: price, Available: balance}
		}

		if err := msg.Unlock(); err != nil {
			return err
		}
		msg.AddDomainEvent(domain.NewTokensDebited(cmd.UserID, price, balance, "unlock", msg.ID()))

		if err := h.messageRepo.MarkUnlocked(txCtx, msg); err != nil {
			return err
		}

		events := msg.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.UserID))

		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		if err := h.outboxRepo.SaveBatch(txCtx, msgs); err != nil {
			return err
		}

		result = &UnlockMessageResult{
			MessageID: msg.ID(),
			Price:     price,
			Balance:   balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
