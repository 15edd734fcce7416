// Package queries contains the subscription read operations.
package queries

import (
	"context"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	"github.com/Oregand/obai-sub000/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionView is what the API and the wallet see of a subscription.
type SubscriptionView struct {
	Tier               catalog.TierID
	Active             bool
	ExpiresAt          *time.Time
	BonusTokens        int64
	DiscountMultiplier decimal.Decimal
	ChatLimit          int
	ExclusivePersonas  bool
	Features           []string
}

// GetSubscriptionQuery requests a user's current subscription.
type GetSubscriptionQuery struct {
	UserID uuid.UUID
}

// GetSubscriptionHandler handles the GetSubscriptionQuery. Resolution order:
// the active subscription row, then the denormalized user fields, then —
// with fail-open enabled — the free tier. A paying user may briefly see free
// pricing during an outage; they are never blocked.
type GetSubscriptionHandler struct {
	subRepo   domain.Repository
	userState domain.UserStateRepository
	failOpen  bool
}

// NewGetSubscriptionHandler creates a new GetSubscriptionHandler.
func NewGetSubscriptionHandler(subRepo domain.Repository, userState domain.UserStateRepository, failOpen bool) *GetSubscriptionHandler {
	return &GetSubscriptionHandler{subRepo: subRepo, userState: userState, failOpen: failOpen}
}

// Handle executes the GetSubscriptionQuery.
func (h *GetSubscriptionHandler) Handle(ctx context.Context, query GetSubscriptionQuery) (*SubscriptionView, error) {
	now := time.Now().UTC()

	sub, err := h.subRepo.FindActiveByUserID(ctx, query.UserID)
	if err == nil && sub != nil && sub.IsActive(now) {
		view := viewForTier(sub.Tier(), true)
		endsAt := sub.EndsAt()
		view.ExpiresAt = &endsAt
		return view, nil
	}
	if err == nil && sub == nil {
		// No active row; the denormalized state decides.
		tier, expiresAt, stateErr := h.userState.SubscriptionState(ctx, query.UserID)
		if stateErr == nil {
			if tier.IsValid() && tier != catalog.TierFree && expiresAt != nil && expiresAt.After(now) {
				view := viewForTier(tier, true)
				view.ExpiresAt = expiresAt
				return view, nil
			}
			return viewForTier(catalog.TierFree, false), nil
		}
		err = stateErr
	}
	if err != nil {
		if !h.failOpen {
			return nil, err
		}
		return viewForTier(catalog.TierFree, false), nil
	}

	return viewForTier(catalog.TierFree, false), nil
}

// ActiveTier resolves the user's effective tier. Satisfies the wallet's
// tier source.
func (h *GetSubscriptionHandler) ActiveTier(ctx context.Context, userID uuid.UUID) (catalog.TierID, error) {
	view, err := h.Handle(ctx, GetSubscriptionQuery{UserID: userID})
	if err != nil {
		return catalog.TierFree, err
	}
	return view.Tier, nil
}

func viewForTier(tierID catalog.TierID, active bool) *SubscriptionView {
	tier, err := catalog.FindTier(tierID)
	if err != nil {
		tier, _ = catalog.FindTier(catalog.TierFree)
		active = false
	}
	return &SubscriptionView{
		Tier:               tier.ID,
		Active:             active,
		BonusTokens:        tier.BonusTokens,
		DiscountMultiplier: tier.DiscountMultiplier,
		ChatLimit:          tier.ChatLimit,
		ExclusivePersonas:  tier.ExclusivePersonas,
		Features:           tier.Features,
	}
}
