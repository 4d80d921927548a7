package usage

import (
	"math"

	"github.com/billforge/billforge/internal/types"
)

// Decision is the outcome of a usage check. Denials carry enough structured
// detail for the calling layer to render an actionable message.
type Decision struct {
	Allowed      bool                    `json:"allowed"`
	FeatureName  types.FeatureName       `json:"feature_name"`
	CurrentUsage int64                   `json:"current_usage"`
	UsageLimit   int64                   `json:"usage_limit"`
	Remaining    int64                   `json:"remaining"`
	Unlimited    bool                    `json:"unlimited"`
	Percentage   float64                 `json:"percentage"`
	WarningLevel types.UsageWarningLevel `json:"warning_level"`
}

// AllowedUnlimited builds the decision for an unlimited feature
func AllowedUnlimited(feature types.FeatureName, currentUsage int64) Decision {
	return Decision{
		Allowed:      true,
		FeatureName:  feature,
		CurrentUsage: currentUsage,
		UsageLimit:   types.UsageLimitUnlimited,
		Remaining:    math.MaxInt64,
		Unlimited:    true,
		Percentage:   0,
		WarningLevel: types.UsageWarningNone,
	}
}

// AllowedWithin builds the decision for usage within a finite limit
func AllowedWithin(feature types.FeatureName, currentUsage, limit int64) Decision {
	percentage := float64(currentUsage) / float64(limit) * 100
	return Decision{
		Allowed:      true,
		FeatureName:  feature,
		CurrentUsage: currentUsage,
		UsageLimit:   limit,
		Remaining:    limit - currentUsage,
		Percentage:   percentage,
		WarningLevel: types.WarningLevelForPercentage(percentage),
	}
}
