package tier

import (
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Provider is the read-only port to the externally configured tier
// catalog: per feature quotas and per cycle prices.
type Provider interface {
	// LimitsFor returns the feature quota table for the tier.
	// -1 means unlimited, 0 means not available.
	LimitsFor(tier types.SubscriptionTier) (map[types.FeatureName]int64, error)
	// LimitFor returns the quota for a single feature. Features missing
	// from the catalog are not available (limit 0).
	LimitFor(tier types.SubscriptionTier, feature types.FeatureName) (int64, error)
	// PriceFor returns the charge for one full billing cycle on the tier
	PriceFor(tier types.SubscriptionTier, cycle types.BillingCycle) (decimal.Decimal, error)
	// CurrencyFor returns the tier's pricing currency
	CurrencyFor(tier types.SubscriptionTier) (string, error)
}
