package domain

import (
	"context"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	"github.com/google/uuid"
)

// Repository defines subscription persistence.
type Repository interface {
	Save(ctx context.Context, subscription *Subscription) error
	// FindActiveByUserID returns the user's current active subscription, or
	// nil when there is none.
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	// ExpireDue flips active subscriptions past their end date to expired
	// and returns how many rows changed. Run periodically by the worker.
	ExpireDue(ctx context.Context) (int64, error)
}

// UserStateRepository maintains the denormalized subscription fields on the
// user row. They serve as a fallback read when the subscriptions table is
// unavailable and as the cheap path for tier checks.
type UserStateRepository interface {
	UpdateSubscriptionState(ctx context.Context, userID uuid.UUID, tier catalog.TierID, expiresAt time.Time) error
	// SubscriptionState returns the denormalized tier and expiry. A user
	// with no subscription history reports the free tier and a nil expiry.
	SubscriptionState(ctx context.Context, userID uuid.UUID) (catalog.TierID, *time.Time, error)
}
