package usage

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// UsageTracking is the per (user, feature, billing period) counter funded
// by a subscription. Exactly one current record exists per user and
// feature; when the period rolls over the record is superseded by a fresh
// one and retained for audit.
type UsageTracking struct {
	// ID is the unique identifier for the usage record
	ID string `db:"id" json:"id"`

	// UserID is the owning user
	UserID string `db:"user_id" json:"user_id"`

	// SubscriptionID is the subscription funding this counter
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// FeatureName identifies the metered feature
	FeatureName types.FeatureName `db:"feature_name" json:"feature_name"`

	// UsageCount is monotonically increasing within a period except on reset
	UsageCount int64 `db:"usage_count" json:"usage_count"`

	// UsageLimit is the quota for the period: -1 unlimited, 0 unavailable,
	// positive values are a hard cap inclusive of the boundary
	UsageLimit int64 `db:"usage_limit" json:"usage_limit"`

	// PeriodStart and PeriodEnd bound the window the counter applies to
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`

	// ResetDate is when the counter rolls over to a new period
	ResetDate time.Time `db:"reset_date" json:"reset_date"`

	// LimitExceeded caches usage_count > usage_limit, always false for
	// unlimited features
	LimitExceeded bool `db:"limit_exceeded" json:"limit_exceeded"`

	// Version is the optimistic concurrency token
	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

// Validate checks the record's structural invariants
func (u *UsageTracking) Validate() error {
	if u.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("Please provide a valid user ID").
			Mark(ierr.ErrValidation)
	}
	if u.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation)
	}
	if err := u.FeatureName.Validate(); err != nil {
		return err
	}
	if u.UsageCount < 0 {
		return ierr.NewError("negative usage count").
			WithHint("Usage count cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if u.UsageLimit < types.UsageLimitUnlimited {
		return ierr.NewError("invalid usage limit").
			WithHint("Usage limit must be -1, 0 or positive").
			Mark(ierr.ErrValidation)
	}
	if !u.PeriodEnd.After(u.PeriodStart) {
		return ierr.NewError("invalid billing period window").
			WithHint("Period end must be after period start").
			WithReportableDetails(map[string]any{
				"period_start": u.PeriodStart,
				"period_end":   u.PeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsUnlimited reports whether the feature has no quota for the tier
func (u *UsageTracking) IsUnlimited() bool {
	return u.UsageLimit == types.UsageLimitUnlimited
}

// IsUnavailable reports whether the feature is not entitled for the tier
func (u *UsageTracking) IsUnavailable() bool {
	return u.UsageLimit == types.UsageLimitUnavailable
}

// IsCurrent reports whether now falls inside the record's period window
func (u *UsageTracking) IsCurrent(now time.Time) bool {
	return !now.Before(u.PeriodStart) && now.Before(u.PeriodEnd)
}

// NeedsReset reports whether the record's reset date has passed
func (u *UsageTracking) NeedsReset(now time.Time) bool {
	return !u.ResetDate.After(now)
}

// UsagePercentage returns the consumed share of the limit in percent.
// Unlimited and unavailable features report 0.
func (u *UsageTracking) UsagePercentage() float64 {
	if u.UsageLimit <= 0 {
		return 0
	}
	return float64(u.UsageCount) / float64(u.UsageLimit) * 100
}

// RecomputeExceeded refreshes the LimitExceeded cache against the current
// count and limit, used after a tier change rewrites the limit
func (u *UsageTracking) RecomputeExceeded() {
	if u.UsageLimit <= 0 {
		u.LimitExceeded = u.IsUnavailable() && u.UsageCount > 0
		return
	}
	u.LimitExceeded = u.UsageCount > u.UsageLimit
}

// WarningLevel derives the warning level from the current usage percentage
func (u *UsageTracking) WarningLevel() types.UsageWarningLevel {
	return types.WarningLevelForPercentage(u.UsagePercentage())
}
