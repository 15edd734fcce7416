package domain

import (
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys for subscription events.
const (
	SubscriptionCreatedRoutingKey = "subscriptions.subscription.created"
	SubscriptionExpiredRoutingKey = "subscriptions.subscription.expired"
)

// SubscriptionCreated is raised when a subscription is billed and started.
type SubscriptionCreated struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Tier           catalog.TierID  `json:"tier"`
	Price          decimal.Decimal `json:"price"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

func NewSubscriptionCreated(subscriptionID, userID uuid.UUID, tier catalog.TierID, price decimal.Decimal, expiresAt time.Time) *SubscriptionCreated {
	return &SubscriptionCreated{
		BaseEvent:      sharedDomain.NewBaseEvent(subscriptionID, "subscription", SubscriptionCreatedRoutingKey),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Tier:           tier,
		Price:          price,
		ExpiresAt:      expiresAt,
	}
}

// SubscriptionExpired is raised when a subscription passes its end date.
type SubscriptionExpired struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID      `json:"subscription_id"`
	UserID         uuid.UUID      `json:"user_id"`
	Tier           catalog.TierID `json:"tier"`
}

func NewSubscriptionExpired(subscriptionID, userID uuid.UUID, tier catalog.TierID) *SubscriptionExpired {
	return &SubscriptionExpired{
		BaseEvent:      sharedDomain.NewBaseEvent(subscriptionID, "subscription", SubscriptionExpiredRoutingKey),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Tier:           tier,
	}
}
