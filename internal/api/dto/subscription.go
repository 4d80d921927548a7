package dto

import (
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// CreateSubscriptionRequest starts a new subscription, optionally with a
// trial period
type CreateSubscriptionRequest struct {
	UserID            string                 `json:"user_id" binding:"required"`
	Tier              types.SubscriptionTier `json:"tier" binding:"required"`
	BillingCycle      types.BillingCycle     `json:"billing_cycle" binding:"required"`
	WithTrial         bool                   `json:"with_trial"`
	TrialDays         int                    `json:"trial_days"`
	AutoRenewal       bool                   `json:"auto_renewal"`
	PromotionCode     string                 `json:"promotion_code"`
	PromotionDiscount decimal.Decimal        `json:"promotion_discount"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("Please provide a valid user ID").
			Mark(ierr.ErrValidation)
	}
	if err := r.Tier.Validate(); err != nil {
		return err
	}
	if err := r.BillingCycle.Validate(); err != nil {
		return err
	}
	if r.WithTrial && r.TrialDays <= 0 {
		return ierr.NewError("invalid trial length").
			WithHint("Trial days must be positive when a trial is requested").
			WithReportableDetails(map[string]any{
				"trial_days": r.TrialDays,
			}).
			Mark(ierr.ErrValidation)
	}
	if r.PromotionDiscount.IsNegative() || r.PromotionDiscount.GreaterThan(decimal.NewFromInt(1)) {
		return ierr.NewError("promotion discount out of range").
			WithHint("Promotion discount must be a fraction between 0 and 1").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ChangeTierRequest upgrades or downgrades an active subscription
type ChangeTierRequest struct {
	Tier   types.SubscriptionTier `json:"tier" binding:"required"`
	Reason string                 `json:"reason"`
}

func (r *ChangeTierRequest) Validate() error {
	return r.Tier.Validate()
}

// ChangeBillingCycleRequest switches the recurrence period for charges
type ChangeBillingCycleRequest struct {
	BillingCycle types.BillingCycle `json:"billing_cycle" binding:"required"`
}

func (r *ChangeBillingCycleRequest) Validate() error {
	return r.BillingCycle.Validate()
}

// CancelSubscriptionRequest cancels a subscription with an optional reason
type CancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

// SubscriptionResponse is the outward view of a subscription enriched
// with derived billing fields
type SubscriptionResponse struct {
	*subscription.Subscription

	// MonthlySavings is the per month discount implied by the current
	// billing cycle commitment
	MonthlySavings decimal.Decimal `json:"monthly_savings"`
	// DaysRemainingInCycle counts whole days until the next billing date
	DaysRemainingInCycle int `json:"days_remaining_in_cycle"`
	// InGracePeriod reports whether access survives a missed billing
	InGracePeriod bool `json:"in_grace_period"`
}

// NewSubscriptionResponse derives the response fields at the given instant
func NewSubscriptionResponse(sub *subscription.Subscription, now time.Time, graceDays int) *SubscriptionResponse {
	return &SubscriptionResponse{
		Subscription:         sub,
		MonthlySavings:       subscription.MonthlySavings(sub),
		DaysRemainingInCycle: subscription.DaysRemainingInCycle(sub, now),
		InGracePeriod:        sub.IsInGracePeriod(now, graceDays),
	}
}

// SweepResponseItem reports the outcome of one record inside a
// maintenance sweep
type SweepResponseItem struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SweepResponse summarizes a maintenance sweep run
type SweepResponse struct {
	Items        []*SweepResponseItem `json:"items"`
	TotalSuccess int                  `json:"total_success"`
	TotalFailed  int                  `json:"total_failed"`
	StartedAt    time.Time            `json:"started_at"`
}
