package domain

import (
	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys for wallet events.
const (
	TokensDebitedRoutingKey   = "wallet.tokens.debited"
	TokensCreditedRoutingKey  = "wallet.tokens.credited"
	FreeMessageUsedRoutingKey = "wallet.free_message.used"
	MessageUnlockedRoutingKey = "wallet.message.unlocked"
)

// TokensDebited is raised when tokens are deducted from a user's balance.
type TokensDebited struct {
	sharedDomain.BaseEvent
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Reason    string          `json:"reason"`
	MessageID uuid.UUID       `json:"message_id,omitempty"`
}

func NewTokensDebited(userID uuid.UUID, amount, balance decimal.Decimal, reason string, messageID uuid.UUID) *TokensDebited {
	return &TokensDebited{
		BaseEvent: sharedDomain.NewBaseEvent(userID, "wallet", TokensDebitedRoutingKey),
		UserID:    userID,
		Amount:    amount,
		Balance:   balance,
		Reason:    reason,
		MessageID: messageID,
	}
}

// TokensCredited is raised when tokens are added to a user's balance.
type TokensCredited struct {
	sharedDomain.BaseEvent
	UserID  uuid.UUID       `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
	Reason  string          `json:"reason"`
}

func NewTokensCredited(userID uuid.UUID, amount, balance decimal.Decimal, reason string) *TokensCredited {
	return &TokensCredited{
		BaseEvent: sharedDomain.NewBaseEvent(userID, "wallet", TokensCreditedRoutingKey),
		UserID:    userID,
		Amount:    amount,
		Balance:   balance,
		Reason:    reason,
	}
}

// FreeMessageUsed is raised when a message is covered by the free quota.
type FreeMessageUsed struct {
	sharedDomain.BaseEvent
	UserID    uuid.UUID `json:"user_id"`
	MessageID uuid.UUID `json:"message_id"`
	Remaining int       `json:"remaining"`
}

func NewFreeMessageUsed(userID, messageID uuid.UUID, remaining int) *FreeMessageUsed {
	return &FreeMessageUsed{
		BaseEvent: sharedDomain.NewBaseEvent(userID, "wallet", FreeMessageUsedRoutingKey),
		UserID:    userID,
		MessageID: messageID,
		Remaining: remaining,
	}
}

// MessageUnlocked is raised when a locked message is paid for and revealed.
type MessageUnlocked struct {
	sharedDomain.BaseEvent
	MessageID uuid.UUID       `json:"message_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Price     decimal.Decimal `json:"price"`
}

func NewMessageUnlocked(messageID, userID uuid.UUID, price decimal.Decimal) *MessageUnlocked {
	return &MessageUnlocked{
		BaseEvent: sharedDomain.NewBaseEvent(messageID, "message", MessageUnlockedRoutingKey),
		MessageID: messageID,
		UserID:    userID,
		Price:     price,
	}
}
