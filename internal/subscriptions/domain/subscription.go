// Package domain models subscriptions: a paid 30-day window on a tier that
// discounts message costs and grants bonus tokens.
package domain

import (
	"errors"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrFreeTierNotBillable  = errors.New("the free tier cannot be subscribed to")
	ErrNotActive            = errors.New("subscription is not active")
)

// BillingPeriod is the subscription window length.
const BillingPeriod = 30 * 24 * time.Hour

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Subscription is one billed tier window for a user.
type Subscription struct {
	sharedDomain.BaseAggregateRoot
	userID      uuid.UUID
	tier        catalog.TierID
	price       decimal.Decimal
	status      Status
	startsAt    time.Time
	endsAt      time.Time
	bonusTokens int64
}

// NewSubscription starts a 30-day subscription on the given tier.
func NewSubscription(userID uuid.UUID, tier catalog.Tier) (*Subscription, error) {
	if tier.ID == catalog.TierFree {
		return nil, ErrFreeTierNotBillable
	}

	now := time.Now().UTC()
	sub := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		tier:              tier.ID,
		price:             tier.Price,
		status:            StatusActive,
		startsAt:          now,
		endsAt:            now.Add(BillingPeriod),
		bonusTokens:       tier.BonusTokens,
	}

	sub.AddDomainEvent(NewSubscriptionCreated(sub.ID(), userID, tier.ID, tier.Price, sub.endsAt))
	return sub, nil
}

// RehydrateSubscription recreates a subscription from persisted state.
func RehydrateSubscription(
	id uuid.UUID,
	userID uuid.UUID,
	tier catalog.TierID,
	price decimal.Decimal,
	status Status,
	startsAt time.Time,
	endsAt time.Time,
	bonusTokens int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Subscription {
	return &Subscription{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		),
		userID:      userID,
		tier:        tier,
		price:       price,
		status:      status,
		startsAt:    startsAt,
		endsAt:      endsAt,
		bonusTokens: bonusTokens,
	}
}

func (s *Subscription) UserID() uuid.UUID      { return s.userID }
func (s *Subscription) Tier() catalog.TierID   { return s.tier }
func (s *Subscription) Price() decimal.Decimal { return s.price }
func (s *Subscription) Status() Status         { return s.status }
func (s *Subscription) StartsAt() time.Time    { return s.startsAt }
func (s *Subscription) EndsAt() time.Time      { return s.endsAt }
func (s *Subscription) BonusTokens() int64     { return s.bonusTokens }

// IsActive reports whether the subscription is active and not past its end.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.status == StatusActive && s.endsAt.After(now)
}

// Expire transitions an active subscription to expired.
func (s *Subscription) Expire() error {
	if s.status != StatusActive {
		return ErrNotActive
	}
	s.status = StatusExpired
	s.Touch()

	s.AddDomainEvent(NewSubscriptionExpired(s.ID(), s.userID, s.tier))
	return nil
}
