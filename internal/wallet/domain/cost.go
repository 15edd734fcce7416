package domain

import (
	"github.com/Oregand/obai-sub000/internal/catalog"
	"github.com/shopspring/decimal"
)

const (
	// baseMessageCost is the token cost of a message at dominance level zero.
	baseMessageCost = 10
	// dominanceCostStep is the per-level surcharge on the base cost.
	dominanceCostStep = 2
)

// MessageCost computes the token cost of one assistant message:
// round((10 + 2*dominance) * exclusivity * discount). Pure function.
// Non-exclusive personas carry an exclusivity multiplier of 1.
func MessageCost(dominanceLevel int, exclusivity, discount decimal.Decimal) int64 {
	base := decimal.NewFromInt(int64(baseMessageCost + dominanceCostStep*dominanceLevel))
	return base.Mul(exclusivity).Mul(discount).Round(0).IntPart()
}

// MessageCostForTier computes the message cost using the tier's discount
// multiplier from the catalog. Unknown tiers price as free tier.
func MessageCostForTier(dominanceLevel int, exclusivity decimal.Decimal, tier catalog.TierID) int64 {
	discount := decimal.NewFromInt(1)
	if t, err := catalog.FindTier(tier); err == nil {
		discount = t.DiscountMultiplier
	}
	return MessageCost(dominanceLevel, exclusivity, discount)
}
