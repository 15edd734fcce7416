// Package commands contains the wallet write operations: charging messages,
// unlocking locked messages and crediting tokens.
package commands

import (
	"context"
	"errors"

	"github.com/Oregand/obai-sub000/internal/catalog"
	personasDomain "github.com/Oregand/obai-sub000/internal/personas/domain"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	"github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPersonaNotFound  = errors.New("persona not found")
	ErrExclusivePersona = errors.New("persona requires a subscription tier with exclusive persona access")
)

// TierSource resolves a user's current subscription tier.
type TierSource interface {
	ActiveTier(ctx context.Context, userID uuid.UUID) (catalog.TierID, error)
}

// QuotaCache invalidates a user's cached free-message count.
type QuotaCache interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// ChargeMessageCommand contains the data needed to account for one message.
type ChargeMessageCommand struct {
	UserID    uuid.UUID
	ChatID    uuid.UUID
	PersonaID uuid.UUID
}

// ChargeMessageResult contains the result of charging a message.
type ChargeMessageResult struct {
	MessageID     uuid.UUID
	Cost          int64
	FreeMessage   bool
	FreeRemaining int
	Balance       decimal.Decimal
}

// ChargeMessageHandler handles the ChargeMessageCommand. Messages that fall
// within the free quota cost nothing; the rest deduct tokens with a clamped
// debit so a concurrent drain can never push the balance negative.
type ChargeMessageHandler struct {
	walletRepo  domain.WalletRepository
	messageRepo domain.MessageRepository
	personaRepo personasDomain.Repository
	tiers       TierSource
	outboxRepo  outbox.Repository
	uow         sharedApplication.UnitOfWork
	quota       QuotaCache
	failOpen    bool
}

// NewChargeMessageHandler creates a new ChargeMessageHandler. quota may be
// nil when no cache is configured.
func NewChargeMessageHandler(
	walletRepo domain.WalletRepository,
	messageRepo domain.MessageRepository,
	personaRepo personasDomain.Repository,
	tiers TierSource,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	quota QuotaCache,
	failOpen bool,
) *ChargeMessageHandler {
	return &ChargeMessageHandler{
		walletRepo:  walletRepo,
		messageRepo: messageRepo,
		personaRepo: personaRepo,
		tiers:       tiers,
		outboxRepo:  outboxRepo,
		uow:         uow,
		quota:       quota,
		failOpen:    failOpen,
	}
}

// Handle executes the ChargeMessageCommand.
func (h *ChargeMessageHandler) Handle(ctx context.Context, cmd ChargeMessageCommand) (*ChargeMessageResult, error) {
	persona, err := h.personaRepo.FindByID(ctx, cmd.PersonaID)
	if err != nil {
		return nil, err
	}
	if persona == nil {
		return nil, ErrPersonaNotFound
	}

	// Tier resolution fails open to the free tier: a broken subscription
	// lookup must not block chat, it only prices without a discount.
	tier, err := h.tiers.ActiveTier(ctx, cmd.UserID)
	if err != nil {
		if !h.failOpen {
			return nil, err
		}
		tier = catalog.TierFree
	}

	// Exclusive personas fail closed: a user whose tier cannot be resolved
	// is priced without a discount, but never granted exclusive access.
	if persona.IsExclusive() {
		t, err := catalog.FindTier(tier)
		if err != nil || !t.ExclusivePersonas {
			return nil, ErrExclusivePersona
		}
	}

	cost := domain.MessageCostForTier(persona.DominanceLevel(), persona.ExclusivityMultiplier(), tier)

	var result *ChargeMessageResult

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		used, err := h.messageRepo.CountFree(txCtx, cmd.UserID)
		if err != nil {
			if !h.failOpen {
				return err
			}
			// Quota check fails open: grant the free message.
			used = 0
		}

		var msg *domain.Message
		var balance decimal.Decimal

		if used < domain.FreeMessageLimit {
			msg = domain.NewFreeMessage(cmd.ChatID, cmd.UserID, domain.RoleAssistant)
			msg.AddDomainEvent(domain.NewFreeMessageUsed(cmd.UserID, msg.ID(), domain.FreeMessageLimit-used-1))

			balance, err = h.walletRepo.Balance(txCtx, cmd.UserID)
			if err != nil {
				return err
			}

			result = &ChargeMessageResult{
				MessageID:     msg.ID(),
				Cost:          0,
				FreeMessage:   true,
				FreeRemaining: domain.FreeMessageLimit - used - 1,
				Balance:       balance,
			}
		} else {
			amount := decimal.NewFromInt(cost)
			balance, err = h.walletRepo.DebitClamped(txCtx, cmd.UserID, amount)
			if err != nil {
				return err
			}

			msg = domain.NewChargedMessage(cmd.ChatID, cmd.UserID, domain.RoleAssistant, cost)
			msg.AddDomainEvent(domain.NewTokensDebited(cmd.UserID, amount, balance, "message", msg.ID()))

			result = &ChargeMessageResult{
				MessageID: msg.ID(),
				Cost:      cost,
				Balance:   balance,
			}
		}

		if err := h.messageRepo.Create(txCtx, msg); err != nil {
			return err
		}

		events := msg.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.UserID))

		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		return h.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		return nil, err
	}

	if result.FreeMessage && h.quota != nil {
		_ = h.quota.Invalidate(ctx, cmd.UserID)
	}

	return result, nil
}
