package commands

import (
	"context"

	"github.com/Oregand/obai-sub000/internal/payments/domain"
	"github.com/Oregand/obai-sub000/internal/payments/gateway"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	walletDomain "github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompletePurchaseCommand polls the gateway and settles the payment when the
// intent reached a terminal status.
type CompletePurchaseCommand struct {
	PaymentID uuid.UUID
	UserID    uuid.UUID
}

// CompletePurchaseResult contains the settlement outcome.
type CompletePurchaseResult struct {
	PaymentID      uuid.UUID
	Status         domain.PaymentStatus
	TokensCredited int64
	Balance        decimal.Decimal
}

// CompletePurchaseHandler handles the CompletePurchaseCommand. Settling is
// idempotent: an already-settled payment is reported as-is and never credits
// twice.
type CompletePurchaseHandler struct {
	paymentRepo domain.Repository
	walletRepo  walletDomain.WalletRepository
	gw          gateway.Gateway
	outboxRepo  outbox.Repository
	uow         sharedApplication.UnitOfWork
}

// NewCompletePurchaseHandler creates a new CompletePurchaseHandler.
func NewCompletePurchaseHandler(
	paymentRepo domain.Repository,
	walletRepo walletDomain.WalletRepository,
	gw gateway.Gateway,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *CompletePurchaseHandler {
	return &CompletePurchaseHandler{
		paymentRepo: paymentRepo,
		walletRepo:  walletRepo,
		gw:          gw,
		outboxRepo:  outboxRepo,
		uow:         uow,
	}
}

// Handle executes the CompletePurchaseCommand.
func (h *CompletePurchaseHandler) Handle(ctx context.Context, cmd CompletePurchaseCommand) (*CompletePurchaseResult, error) {
	payment, err := h.paymentRepo.FindByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound
	}
	if payment.UserID() != cmd.UserID {
		return nil, ErrNotPaymentOwner
	}
	if !payment.IsPending() {
		return &CompletePurchaseResult{PaymentID: payment.ID(), Status: payment.Status()}, nil
	}

	status, err := h.gw.GetIntentStatus(ctx, payment.IntentID())
	if err != nil {
		return nil, err
	}
	if !status.Terminal() {
		return &CompletePurchaseResult{PaymentID: payment.ID(), Status: domain.StatusPending}, nil
	}

	var result *CompletePurchaseResult

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		// Re-read under the transaction: a concurrent poll or webhook may
		// have settled the payment already.
		payment, err := h.paymentRepo.FindByID(txCtx, cmd.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrPaymentNotFound
		}
		if !payment.IsPending() {
			result = &CompletePurchaseResult{PaymentID: payment.ID(), Status: payment.Status()}
			return nil
		}

		succeeded := status == gateway.IntentSucceeded
		balance, err := settlePayment(txCtx, h.paymentRepo, h.walletRepo, h.outboxRepo, payment, succeeded, "gateway reported failure")
		if err != nil {
			return err
		}

		result = &CompletePurchaseResult{
			PaymentID: payment.ID(),
			Status:    payment.Status(),
			Balance:   balance,
		}
		if succeeded {
			result.TokensCredited = payment.TotalTokens()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
