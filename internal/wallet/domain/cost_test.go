package domain

import (
	"testing"

	"github.com/Oregand/obai-sub000/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var standardPricing = decimal.NewFromInt(1)

func TestMessageCostForTier(t *testing.T) {
	tests := []struct {
		name      string
		dominance int
		tier      catalog.TierID
		want      int64
	}{
		{"dominance 3 on free tier", 3, catalog.TierFree, 16},
		{"dominance 1 on vip tier", 1, catalog.TierVIP, 4},
		{"dominance 1 on free tier", 1, catalog.TierFree, 12},
		{"dominance 5 on free tier", 5, catalog.TierFree, 20},
		{"dominance 5 on basic tier", 5, catalog.TierBasic, 16},
		{"dominance 5 on premium tier", 5, catalog.TierPremium, 10},
		{"dominance 5 on vip tier", 5, catalog.TierVIP, 6},
		{"unknown tier prices as free", 3, catalog.TierID("legacy"), 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MessageCostForTier(tt.dominance, standardPricing, tt.tier))
		})
	}

	t.Run("exclusivity multiplier scales the discounted cost", func(t *testing.T) {
		// (10 + 2*3) * 2.0 * 0.3 = 9.6 -> 10
		got := MessageCostForTier(3, decimal.RequireFromString("2.0"), catalog.TierVIP)
		assert.Equal(t, int64(10), got)
	})
}

func TestMessageCost(t *testing.T) {
	t.Run("rounds half away from zero", func(t *testing.T) {
		// (10 + 2*1) * 0.3 = 3.6 -> 4
		assert.Equal(t, int64(4), MessageCost(1, standardPricing, decimal.RequireFromString("0.3")))
		// (10 + 2*2) * 0.25 = 3.5 -> 4
		assert.Equal(t, int64(4), MessageCost(2, standardPricing, decimal.RequireFromString("0.25")))
	})

	t.Run("multiplier of one leaves the cost unchanged", func(t *testing.T) {
		for level := 1; level <= 5; level++ {
			base := MessageCost(level, standardPricing, standardPricing)
			scaled := MessageCost(level, decimal.RequireFromString("1.5"), standardPricing)
			assert.GreaterOrEqual(t, scaled, base)
		}
	})

	t.Run("cost never decreases with dominance", func(t *testing.T) {
		for _, tier := range catalog.Tiers() {
			prev := int64(0)
			for level := 1; level <= 5; level++ {
				cost := MessageCost(level, standardPricing, tier.DiscountMultiplier)
				assert.GreaterOrEqual(t, cost, prev)
				prev = cost
			}
		}
	})
}
