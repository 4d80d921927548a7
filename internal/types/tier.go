package types

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionTier is the plan level of a subscription. Tiers are ordered so
// upgrade and downgrade comparisons are well defined.
type SubscriptionTier string

const (
	SubscriptionTierFree          SubscriptionTier = "FREE"
	SubscriptionTierPro           SubscriptionTier = "PRO"
	SubscriptionTierAIPremium     SubscriptionTier = "AI_PREMIUM"
	SubscriptionTierInstitutional SubscriptionTier = "INSTITUTIONAL"
)

// tierRanks defines the upgrade ordering FREE < PRO < AI_PREMIUM < INSTITUTIONAL
var tierRanks = map[SubscriptionTier]int{
	SubscriptionTierFree:          0,
	SubscriptionTierPro:           1,
	SubscriptionTierAIPremium:     2,
	SubscriptionTierInstitutional: 3,
}

func (t SubscriptionTier) String() string {
	return string(t)
}

// Rank returns the position of the tier in the upgrade ordering.
// Unknown tiers rank below FREE.
func (t SubscriptionTier) Rank() int {
	if rank, ok := tierRanks[t]; ok {
		return rank
	}
	return -1
}

// IsUpgradeFrom returns true when t is a strictly higher tier than other
func (t SubscriptionTier) IsUpgradeFrom(other SubscriptionTier) bool {
	return t.Rank() > other.Rank()
}

// IsHighestTier returns true for the top tier which cannot be upgraded further
func (t SubscriptionTier) IsHighestTier() bool {
	return t == SubscriptionTierInstitutional
}

func (t SubscriptionTier) Validate() error {
	allowed := []SubscriptionTier{
		SubscriptionTierFree,
		SubscriptionTierPro,
		SubscriptionTierAIPremium,
		SubscriptionTierInstitutional,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid subscription tier").
			WithHint("Invalid subscription tier").
			WithReportableDetails(map[string]any{
				"tier":          t,
				"allowed_tiers": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
