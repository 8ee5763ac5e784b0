package pricing

import "github.com/shopspring/decimal"

var multipliers = map[Tier]float64{
	TierNew:            1.00,
	TierUsedLikeNew:    0.80,
	TierUsedVeryGood:   0.75,
	TierUsedGood:       0.70,
	TierUsedAcceptable: 0.65,
}

// Price is the result of pricing a unit.
type Price struct {
	InventoryPrice float64 `json:"inventoryPrice"`
	ListingPrice   float64 `json:"listingPrice"`
}

// Policy holds the placeholder values applied when the gateway has no data.
type Policy struct {
	// DefaultBase is used when a lookup carries no usable inventory price.
	DefaultBase float64
	// FallbackMultiplier applies to tiers outside the fixed table.
	FallbackMultiplier float64
}

// DefaultPolicy returns the stock placeholder policy: $25.00 base, 1.0 multiplier.
func DefaultPolicy() Policy {
	return Policy{DefaultBase: 25.00, FallbackMultiplier: 1.0}
}

// Multiplier returns the listing multiplier for a tier.
func (p Policy) Multiplier(t Tier) float64 {
	if m, ok := multipliers[t]; ok {
		return m
	}
	if p.FallbackMultiplier > 0 {
		return p.FallbackMultiplier
	}
	return 1.0
}

// Base returns raw when it is a usable price, otherwise the policy default.
func (p Policy) Base(raw float64) float64 {
	if raw > 0 {
		return raw
	}
	return p.DefaultBase
}

// PriceFor computes the listing price as base*multiplier rounded half-up to
// cents. The inventory price is passed through unchanged.
func (p Policy) PriceFor(base float64, t Tier) Price {
	listing := decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(p.Multiplier(t))).
		Round(2)
	return Price{InventoryPrice: base, ListingPrice: listing.InexactFloat64()}
}

// PriceFor prices with DefaultPolicy.
func PriceFor(base float64, t Tier) Price {
	return DefaultPolicy().PriceFor(base, t)
}
