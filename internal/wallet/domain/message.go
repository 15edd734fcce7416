package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrMessageNotLocked       = errors.New("message is not locked")
	ErrMessageAlreadyUnlocked = errors.New("message is already unlocked")
	ErrInvalidLockPrice       = errors.New("lock price must be positive")
)

// MessageRole distinguishes who produced a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a chat message as the accounting engine sees it: who it belongs
// to, what it cost, whether it consumed free quota, and its lock state.
type Message struct {
	sharedDomain.BaseAggregateRoot
	chatID     uuid.UUID
	userID     uuid.UUID
	role       MessageRole
	tokenCost  int64
	free       bool
	lockPrice  decimal.Decimal
	locked     bool
	unlockedAt *time.Time
}

// NewChargedMessage creates a message that was paid for with tokens.
func NewChargedMessage(chatID, userID uuid.UUID, role MessageRole, tokenCost int64) *Message {
	return &Message{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		chatID:            chatID,
		userID:            userID,
		role:              role,
		tokenCost:         tokenCost,
	}
}

// NewFreeMessage creates a message covered by the free-message quota.
func NewFreeMessage(chatID, userID uuid.UUID, role MessageRole) *Message {
	return &Message{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		chatID:            chatID,
		userID:            userID,
		role:              role,
		free:              true,
	}
}

// NewLockedMessage creates a teaser message that requires payment to view.
func NewLockedMessage(chatID, userID uuid.UUID, price decimal.Decimal) (*Message, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidLockPrice
	}
	return &Message{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		chatID:            chatID,
		userID:            userID,
		role:              RoleAssistant,
		lockPrice:         price,
		locked:            true,
	}, nil
}

// RehydrateMessage recreates a message from persisted state.
func RehydrateMessage(
	id uuid.UUID,
	chatID uuid.UUID,
	userID uuid.UUID,
	role MessageRole,
	tokenCost int64,
	free bool,
	lockPrice decimal.Decimal,
	locked bool,
	unlockedAt *time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) *Message {
	return &Message{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		),
		chatID:     chatID,
		userID:     userID,
		role:       role,
		tokenCost:  tokenCost,
		free:       free,
		lockPrice:  lockPrice,
		locked:     locked,
		unlockedAt: unlockedAt,
	}
}

func (m *Message) ChatID() uuid.UUID          { return m.chatID }
func (m *Message) UserID() uuid.UUID          { return m.userID }
func (m *Message) Role() MessageRole          { return m.role }
func (m *Message) TokenCost() int64           { return m.tokenCost }
func (m *Message) IsFree() bool               { return m.free }
func (m *Message) LockPrice() decimal.Decimal { return m.lockPrice }
func (m *Message) IsLocked() bool             { return m.locked }
func (m *Message) UnlockedAt() *time.Time     { return m.unlockedAt }

// OwnedBy reports whether the message belongs to the given user.
func (m *Message) OwnedBy(userID uuid.UUID) bool {
	return m.userID == userID
}

// Unlock transitions a locked message to unlocked. It does not touch the
// balance; the caller debits first and only unlocks after the debit succeeds.
func (m *Message) Unlock() error {
	if m.unlockedAt != nil {
		return ErrMessageAlreadyUnlocked
	}
	if !m.locked {
		return ErrMessageNotLocked
	}
	now := time.Now().UTC()
	m.locked = false
	m.unlockedAt = &now
	m.Touch()

	m.AddDomainEvent(NewMessageUnlocked(m.ID(), m.userID, m.lockPrice))
	return nil
}
