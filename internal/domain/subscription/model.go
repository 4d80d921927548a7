package subscription

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is the aggregate representing one user's paid relationship
// with the product. It owns status, tier, billing cycle, dates and failure
// counters. All mutations go through the lifecycle operations in state.go.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// UserID is the owning user, immutable post creation
	UserID string `db:"user_id" json:"user_id"`

	// Tier is the plan level determining price and feature quotas
	Tier types.SubscriptionTier `db:"tier" json:"tier"`

	// SubscriptionStatus is the lifecycle status of the subscription
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// BillingCycle is the recurrence period for charges
	BillingCycle types.BillingCycle `db:"billing_cycle" json:"billing_cycle"`

	// Currency is the currency of the subscription in lowercase 3 digit ISO codes
	Currency string `db:"currency" json:"currency"`

	// MonthlyPrice is the tier's list price per month
	MonthlyPrice decimal.Decimal `db:"monthly_price" json:"monthly_price"`

	// BillingAmount is the actual charge per cycle, post discount
	BillingAmount decimal.Decimal `db:"billing_amount" json:"billing_amount"`

	// StartDate is the start date of the subscription
	StartDate time.Time `db:"start_date" json:"start_date"`

	// EndDate is the end date of the subscription, nil means open ended
	EndDate *time.Time `db:"end_date" json:"end_date"`

	// NextBillingDate is when the next charge is due
	NextBillingDate *time.Time `db:"next_billing_date" json:"next_billing_date"`

	// LastBillingDate is when the last successful charge happened
	LastBillingDate *time.Time `db:"last_billing_date" json:"last_billing_date"`

	// TrialEndDate is only meaningful while the subscription is in trial
	TrialEndDate *time.Time `db:"trial_end_date" json:"trial_end_date"`

	// CancelledAt is the date the subscription was cancelled
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at"`

	// FailedBillingAttempts counts consecutive failed charges.
	// Reaching the configured maximum forces suspension.
	FailedBillingAttempts int `db:"failed_billing_attempts" json:"failed_billing_attempts"`

	// AutoRenewal controls whether billing is attempted at all
	AutoRenewal bool `db:"auto_renewal" json:"auto_renewal"`

	// PromotionCode is the applied promotion, empty when none
	PromotionCode string `db:"promotion_code" json:"promotion_code"`

	// PromotionDiscount is the fractional discount in [0,1]
	PromotionDiscount decimal.Decimal `db:"promotion_discount" json:"promotion_discount"`

	// Version is the optimistic concurrency token. Every write checks it
	// against the stored value and fails on mismatch.
	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

// Validate checks the aggregate's structural invariants
func (s *Subscription) Validate() error {
	if s.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("Please provide a valid user ID").
			Mark(ierr.ErrValidation)
	}
	if err := s.Tier.Validate(); err != nil {
		return err
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if err := s.BillingCycle.Validate(); err != nil {
		return err
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return ierr.NewError("end date before start date").
			WithHint("Subscription end date cannot be before its start date").
			WithReportableDetails(map[string]any{
				"start_date": s.StartDate,
				"end_date":   s.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}
	if s.FailedBillingAttempts < 0 {
		return ierr.NewError("negative failed billing attempts").
			WithHint("Failed billing attempts cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if s.PromotionDiscount.IsNegative() || s.PromotionDiscount.GreaterThan(decimal.NewFromInt(1)) {
		return ierr.NewError("promotion discount out of range").
			WithHint("Promotion discount must be a fraction between 0 and 1").
			WithReportableDetails(map[string]any{
				"promotion_discount": s.PromotionDiscount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsActive reports whether the subscription currently grants billing and
// feature access: a billable status and no end date in the past.
func (s *Subscription) IsActive(now time.Time) bool {
	if !s.SubscriptionStatus.IsBillable() {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}

// IsInTrial reports whether the subscription is in a running trial period
func (s *Subscription) IsInTrial(now time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusTrial &&
		s.TrialEndDate != nil && s.TrialEndDate.After(now)
}

// IsDueForBilling reports whether a billing attempt is expected:
// billable status, auto renewal on and the next billing date has passed.
func (s *Subscription) IsDueForBilling(now time.Time) bool {
	if !s.SubscriptionStatus.IsBillable() || !s.AutoRenewal {
		return false
	}
	return s.NextBillingDate != nil && !s.NextBillingDate.After(now)
}

// IsInGracePeriod reports whether an EXPIRED subscription is still inside
// the grace window after its missed billing date. During grace, feature
// access is not revoked while billing retries are expected.
func (s *Subscription) IsInGracePeriod(now time.Time, graceDays int) bool {
	if s.SubscriptionStatus != types.SubscriptionStatusExpired || s.NextBillingDate == nil {
		return false
	}
	deadline := s.NextBillingDate.Add(time.Duration(graceDays) * 24 * time.Hour)
	return now.Before(deadline)
}

// HasFeatureAccess reports whether metered features may be used right now.
// Grace period keeps access alive after expiry.
func (s *Subscription) HasFeatureAccess(now time.Time, graceDays int) bool {
	return s.IsActive(now) || s.IsInGracePeriod(now, graceDays)
}
