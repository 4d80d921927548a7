package types

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/samber/lo"
)

const (
	// UsageLimitUnlimited marks a feature with no quota for the tier
	UsageLimitUnlimited int64 = -1
	// UsageLimitUnavailable marks a feature not entitled for the tier
	UsageLimitUnavailable int64 = 0
)

// FeatureName identifies a metered feature. Features are externally
// configured, this is an open string type and not an enum.
type FeatureName string

func (f FeatureName) String() string {
	return string(f)
}

func (f FeatureName) Validate() error {
	if f == "" {
		return ierr.NewError("feature name is required").
			WithHint("Please provide a feature name").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// UsageWarningLevel is derived from the percentage of the usage limit
// consumed within the current billing period
type UsageWarningLevel string

const (
	UsageWarningNone     UsageWarningLevel = "NONE"
	UsageWarningLow      UsageWarningLevel = "LOW"
	UsageWarningMedium   UsageWarningLevel = "MEDIUM"
	UsageWarningHigh     UsageWarningLevel = "HIGH"
	UsageWarningCritical UsageWarningLevel = "CRITICAL"
)

func (l UsageWarningLevel) String() string {
	return string(l)
}

func (l UsageWarningLevel) Validate() error {
	allowed := []UsageWarningLevel{
		UsageWarningNone,
		UsageWarningLow,
		UsageWarningMedium,
		UsageWarningHigh,
		UsageWarningCritical,
	}
	if !lo.Contains(allowed, l) {
		return ierr.NewError("invalid usage warning level").
			WithHint("Invalid usage warning level").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// WarningLevelForPercentage derives the warning level from the consumed
// percentage of the usage limit. Thresholds are inclusive at the lower
// bound, so exactly reaching the limit (100%) is CRITICAL even though the
// increment that reached it was allowed.
func WarningLevelForPercentage(percentage float64) UsageWarningLevel {
	switch {
	case percentage >= 100:
		return UsageWarningCritical
	case percentage >= 90:
		return UsageWarningHigh
	case percentage >= 80:
		return UsageWarningMedium
	case percentage >= 60:
		return UsageWarningLow
	default:
		return UsageWarningNone
	}
}
