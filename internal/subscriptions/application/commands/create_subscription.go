// Package commands contains the subscription write operations.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	paymentsDomain "github.com/Oregand/obai-sub000/internal/payments/domain"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	"github.com/Oregand/obai-sub000/internal/subscriptions/domain"
	walletDomain "github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateSubscriptionCommand subscribes a user to a paid tier.
type CreateSubscriptionCommand struct {
	UserID uuid.UUID
	Tier   catalog.TierID
}

// CreateSubscriptionResult contains the result of creating a subscription.
type CreateSubscriptionResult struct {
	SubscriptionID uuid.UUID
	PaymentID      uuid.UUID
	Tier           catalog.TierID
	ExpiresAt      time.Time
	BonusCredited  int64
	Balance        decimal.Decimal
}

// CreateSubscriptionHandler handles the CreateSubscriptionCommand. The
// payment, the subscription row, the denormalized user state and the bonus
// token credit commit in one transaction: either the user gets everything the
// tier promises or nothing changes.
type CreateSubscriptionHandler struct {
	subRepo     domain.Repository
	userState   domain.UserStateRepository
	paymentRepo paymentsDomain.Repository
	walletRepo  walletDomain.WalletRepository
	outboxRepo  outbox.Repository
	uow         sharedApplication.UnitOfWork
}

// NewCreateSubscriptionHandler creates a new CreateSubscriptionHandler.
func NewCreateSubscriptionHandler(
	subRepo domain.Repository,
	userState domain.UserStateRepository,
	paymentRepo paymentsDomain.Repository,
	walletRepo walletDomain.WalletRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *CreateSubscriptionHandler {
	return &CreateSubscriptionHandler{
		subRepo:     subRepo,
		userState:   userState,
		paymentRepo: paymentRepo,
		walletRepo:  walletRepo,
		outboxRepo:  outboxRepo,
		uow:         uow,
	}
}

// Handle executes the CreateSubscriptionCommand.
func (h *CreateSubscriptionHandler) Handle(ctx context.Context, cmd CreateSubscriptionCommand) (*CreateSubscriptionResult, error) {
	tier, err := catalog.FindTier(cmd.Tier)
	if err != nil {
		return nil, err
	}
	if tier.ID == catalog.TierFree {
		return nil, domain.ErrFreeTierNotBillable
	}

	var result *CreateSubscriptionResult

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		sub, err := domain.NewSubscription(cmd.UserID, tier)
		if err != nil {
			return err
		}

		idempotencyKey := fmt.Sprintf("sub:%s:%s", cmd.UserID, sub.ID())
		payment, err := paymentsDomain.NewPayment(
			cmd.UserID, tier.Price, "USD", paymentsDomain.TypeSubscription,
			0, tier.BonusTokens, idempotencyKey,
		)
		if err != nil {
			return err
		}
		if err := payment.Complete(); err != nil {
			return err
		}
		if err := h.paymentRepo.Save(txCtx, payment); err != nil {
			return err
		}

		if err := h.subRepo.Save(txCtx, sub); err != nil {
			return err
		}

		if err := h.userState.UpdateSubscriptionState(txCtx, cmd.UserID, tier.ID, sub.EndsAt()); err != nil {
			return err
		}

		balance := decimal.Zero
		events := append(sub.DomainEvents(), payment.DomainEvents()...)

		if tier.BonusTokens > 0 {
			bonus := decimal.NewFromInt(tier.BonusTokens)
			balance, err = h.walletRepo.Credit(txCtx, cmd.UserID, bonus)
			if err != nil {
				return err
			}
			events = append(events, walletDomain.NewTokensCredited(cmd.UserID, bonus, balance, "subscription_bonus"))
		}

		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.UserID))

		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		if err := h.outboxRepo.SaveBatch(txCtx, msgs); err != nil {
			return err
		}

		result = &CreateSubscriptionResult{
			SubscriptionID: sub.ID(),
			PaymentID:      payment.ID(),
			Tier:           tier.ID,
			ExpiresAt:      sub.EndsAt(),
			BonusCredited:  tier.BonusTokens,
			Balance:        balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
