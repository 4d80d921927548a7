package types

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the lifecycle status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	// SubscriptionStatusTerminated is the terminal soft delete state.
	// Subscriptions are never physically deleted.
	SubscriptionStatusTerminated SubscriptionStatus = "terminated"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsBillable returns true for statuses that grant billing and feature access
func (s SubscriptionStatus) IsBillable() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrial
}

// IsTerminal returns true for the terminal state out of which no
// transition is allowed
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusTerminated
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusPending,
		SubscriptionStatusTrial,
		SubscriptionStatusActive,
		SubscriptionStatusSuspended,
		SubscriptionStatusExpired,
		SubscriptionStatusCancelled,
		SubscriptionStatusTerminated,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingCycle is the recurrence period for subscription charges
type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "MONTHLY"
	BillingCycleQuarterly BillingCycle = "QUARTERLY"
	BillingCycleAnnual    BillingCycle = "ANNUAL"
)

// billingCycleMonths maps each cycle to its month count multiplier
var billingCycleMonths = map[BillingCycle]int{
	BillingCycleMonthly:   1,
	BillingCycleQuarterly: 3,
	BillingCycleAnnual:    12,
}

func (c BillingCycle) String() string {
	return string(c)
}

// Months returns the number of calendar months covered by one cycle
func (c BillingCycle) Months() int {
	if months, ok := billingCycleMonths[c]; ok {
		return months
	}
	return 0
}

func (c BillingCycle) Validate() error {
	allowed := []BillingCycle{
		BillingCycleMonthly,
		BillingCycleQuarterly,
		BillingCycleAnnual,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid billing cycle").
			WithHint("Invalid billing cycle").
			WithReportableDetails(map[string]any{
				"billing_cycle":  c,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionChangeType classifies history events emitted on lifecycle
// and billing changes
type SubscriptionChangeType string

const (
	SubscriptionChangeCreated        SubscriptionChangeType = "created"
	SubscriptionChangeTrialStarted   SubscriptionChangeType = "trial_started"
	SubscriptionChangeActivated      SubscriptionChangeType = "activated"
	SubscriptionChangeRenewed        SubscriptionChangeType = "renewed"
	SubscriptionChangeBillingFailed  SubscriptionChangeType = "billing_failed"
	SubscriptionChangeSuspended      SubscriptionChangeType = "suspended"
	SubscriptionChangeCancelled      SubscriptionChangeType = "cancelled"
	SubscriptionChangeReactivated    SubscriptionChangeType = "reactivated"
	SubscriptionChangeExpired        SubscriptionChangeType = "expired"
	SubscriptionChangeTerminated     SubscriptionChangeType = "terminated"
	SubscriptionChangeTierUpgraded   SubscriptionChangeType = "tier_upgraded"
	SubscriptionChangeTierDowngraded SubscriptionChangeType = "tier_downgraded"
	SubscriptionChangeCycleChanged   SubscriptionChangeType = "cycle_changed"
)

func (t SubscriptionChangeType) String() string {
	return string(t)
}
