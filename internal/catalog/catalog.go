// Package catalog holds the static pricing reference data: token packages,
// custom-amount pricing bands and subscription tiers. The data is consumed by
// the wallet, subscription and topup contexts; it carries no behavior beyond
// lookups and quoting.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrPackageNotFound    = errors.New("token package not found")
	ErrTierNotFound       = errors.New("subscription tier not found")
	ErrAmountBelowMinimum = errors.New("token amount below minimum purchasable")
)

// Package is a fixed token package offered at checkout.
type Package struct {
	ID     string
	Tokens int64
	Bonus  int64
	Price  decimal.Decimal
}

// CustomBand prices a contiguous range of custom token amounts.
type CustomBand struct {
	MinTokens     int64
	MaxTokens     int64
	PricePerToken decimal.Decimal
	BonusPercent  int64
}

// TierID identifies a subscription tier.
type TierID string

const (
	TierFree    TierID = "free"
	TierBasic   TierID = "basic"
	TierPremium TierID = "premium"
	TierVIP     TierID = "vip"
)

// IsValid reports whether the tier is one of the known tiers.
func (t TierID) IsValid() bool {
	switch t {
	case TierFree, TierBasic, TierPremium, TierVIP:
		return true
	default:
		return false
	}
}

// Rank orders tiers from free (0) to vip (3). Used to verify discount
// monotonicity and to compare tier quality.
func (t TierID) Rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierPremium:
		return 2
	case TierVIP:
		return 3
	default:
		return 0
	}
}

// Tier describes a subscription tier and its billing parameters.
type Tier struct {
	ID                 TierID
	Price              decimal.Decimal
	BonusTokens        int64
	DiscountMultiplier decimal.Decimal
	ChatLimit          int // 0 means unlimited
	ExclusivePersonas  bool
	Features           []string
}

// Quote is the price and bonus for a custom token amount.
type Quote struct {
	Tokens int64
	Bonus  int64
	Price  decimal.Decimal
}

// Packages returns the fixed token packages, cheapest first.
func Packages() []Package {
	return []Package{
		{ID: "starter", Tokens: 50, Bonus: 0, Price: decimal.NewFromFloat(2.99)},
		{ID: "basic", Tokens: 100, Bonus: 0, Price: decimal.NewFromFloat(4.99)},
		{ID: "plus", Tokens: 250, Bonus: 25, Price: decimal.NewFromFloat(9.99)},
		{ID: "pro", Tokens: 600, Bonus: 90, Price: decimal.NewFromFloat(19.99)},
		{ID: "max", Tokens: 1500, Bonus: 300, Price: decimal.NewFromFloat(39.99)},
	}
}

// FindPackage looks up a fixed package by ID.
func FindPackage(id string) (Package, error) {
	for _, p := range Packages() {
		if p.ID == id {
			return p, nil
		}
	}
	return Package{}, ErrPackageNotFound
}

// CustomBands returns the custom-amount pricing bands in ascending order.
// Bands are contiguous and non-overlapping; larger amounts earn a lower
// per-token price and a higher bonus percentage.
func CustomBands() []CustomBand {
	return []CustomBand{
		{MinTokens: 50, MaxTokens: 199, PricePerToken: decimal.NewFromFloat(0.050), BonusPercent: 0},
		{MinTokens: 200, MaxTokens: 499, PricePerToken: decimal.NewFromFloat(0.045), BonusPercent: 5},
		{MinTokens: 500, MaxTokens: 999, PricePerToken: decimal.NewFromFloat(0.040), BonusPercent: 10},
		{MinTokens: 1000, MaxTokens: 4999, PricePerToken: decimal.NewFromFloat(0.035), BonusPercent: 15},
		{MinTokens: 5000, MaxTokens: 9999, PricePerToken: decimal.NewFromFloat(0.030), BonusPercent: 20},
	}
}

// PriceCustomAmount quotes a custom token amount from the band table.
// Amounts above the highest band clamp to the highest band's rate; amounts
// below the lowest band are rejected.
func PriceCustomAmount(tokens int64) (Quote, error) {
	bands := CustomBands()
	if tokens < bands[0].MinTokens {
		return Quote{}, ErrAmountBelowMinimum
	}

	band := bands[len(bands)-1]
	for _, b := range bands {
		if tokens >= b.MinTokens && tokens <= b.MaxTokens {
			band = b
			break
		}
	}

	price := band.PricePerToken.Mul(decimal.NewFromInt(tokens))
	bonus := tokens * band.BonusPercent / 100

	return Quote{Tokens: tokens, Bonus: bonus, Price: price}, nil
}

// Tiers returns the subscription tiers, free first.
func Tiers() []Tier {
	return []Tier{
		{
			ID:                 TierFree,
			Price:              decimal.Zero,
			BonusTokens:        0,
			DiscountMultiplier: decimal.NewFromInt(1),
			ChatLimit:          3,
			Features: []string{
				"3 chats",
				"10 free messages",
				"Standard personas",
			},
		},
		{
			ID:                 TierBasic,
			Price:              decimal.NewFromFloat(9.99),
			BonusTokens:        300,
			DiscountMultiplier: decimal.NewFromFloat(0.8),
			ChatLimit:          10,
			Features: []string{
				"10 chats",
				"300 bonus tokens monthly",
				"20% message discount",
			},
		},
		{
			ID:                 TierPremium,
			Price:              decimal.NewFromFloat(19.99),
			BonusTokens:        1000,
			DiscountMultiplier: decimal.NewFromFloat(0.5),
			ChatLimit:          0,
			Features: []string{
				"Unlimited chats",
				"1000 bonus tokens monthly",
				"50% message discount",
			},
		},
		{
			ID:                 TierVIP,
			Price:              decimal.NewFromFloat(49.99),
			BonusTokens:        3000,
			DiscountMultiplier: decimal.NewFromFloat(0.3),
			ChatLimit:          0,
			ExclusivePersonas:  true,
			Features: []string{
				"Unlimited chats",
				"3000 bonus tokens monthly",
				"70% message discount",
				"Exclusive personas",
			},
		},
	}
}

// FindTier looks up a subscription tier by ID.
func FindTier(id TierID) (Tier, error) {
	for _, t := range Tiers() {
		if t.ID == id {
			return t, nil
		}
	}
	return Tier{}, ErrTierNotFound
}
