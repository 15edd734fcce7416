package commands

import (
	"context"

	"github.com/Oregand/obai-sub000/internal/payments/domain"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	walletDomain "github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
)

// SettleIntentCommand settles a payment from a verified gateway webhook.
type SettleIntentCommand struct {
	IntentID  string
	Succeeded bool
	Reason    string
}

// SettleIntentResult contains the settlement outcome.
type SettleIntentResult struct {
	PaymentID uuid.UUID
	Status    domain.PaymentStatus
}

// SettleIntentHandler handles the SettleIntentCommand. Webhook deliveries are
// at-least-once; a redelivered settle is a no-op.
type SettleIntentHandler struct {
	paymentRepo domain.Repository
	walletRepo  walletDomain.WalletRepository
	outboxRepo  outbox.Repository
	uow         sharedApplication.UnitOfWork
}

// NewSettleIntentHandler creates a new SettleIntentHandler.
func NewSettleIntentHandler(
	paymentRepo domain.Repository,
	walletRepo walletDomain.WalletRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *SettleIntentHandler {
	return &SettleIntentHandler{
		paymentRepo: paymentRepo,
		walletRepo:  walletRepo,
		outboxRepo:  outboxRepo,
		uow:         uow,
	}
}

// Handle executes the SettleIntentCommand.
func (h *SettleIntentHandler) Handle(ctx context.Context, cmd SettleIntentCommand) (*SettleIntentResult, error) {
	var result *SettleIntentResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		payment, err := h.paymentRepo.FindByIntentID(txCtx, cmd.IntentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrPaymentNotFound
		}
		if !payment.IsPending() {
			result = &SettleIntentResult{PaymentID: payment.ID(), Status: payment.Status()}
			return nil
		}

		reason := cmd.Reason
		if reason == "" {
			reason = "gateway reported failure"
		}
		if _, err := settlePayment(txCtx, h.paymentRepo, h.walletRepo, h.outboxRepo, payment, cmd.Succeeded, reason); err != nil {
			return err
		}

		result = &SettleIntentResult{PaymentID: payment.ID(), Status: payment.Status()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
