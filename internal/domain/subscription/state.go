package subscription

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Lifecycle state machine. Every operation guards the current status and
// mutates the aggregate in place; illegal transitions are rejected with an
// invalid operation error naming the attempted transition. Persistence and
// history emission happen in the service layer.

// invalidTransition builds the rejection error for an operation that is not
// legal in the current status
func (s *Subscription) invalidTransition(operation string) error {
	return ierr.NewError("invalid subscription state transition").
		WithHintf("Operation %s is not allowed while the subscription is %s", operation, s.SubscriptionStatus).
		WithReportableDetails(map[string]any{
			"operation":   operation,
			"from_status": s.SubscriptionStatus,
		}).
		Mark(ierr.ErrInvalidOperation)
}

func (s *Subscription) guard(operation string, allowed ...types.SubscriptionStatus) error {
	if s.SubscriptionStatus.IsTerminal() {
		return s.invalidTransition(operation)
	}
	if !lo.Contains(allowed, s.SubscriptionStatus) {
		return s.invalidTransition(operation)
	}
	return nil
}

// Activate moves a PENDING or TRIAL subscription to ACTIVE, or reactivates
// a CANCELLED one. Activation stamps the start date and clears the failure
// counter; reactivation additionally re-enables auto renewal.
func (s *Subscription) Activate(now time.Time) (types.SubscriptionChangeType, error) {
	if err := s.guard("activate",
		types.SubscriptionStatusPending,
		types.SubscriptionStatusTrial,
		types.SubscriptionStatusCancelled,
	); err != nil {
		return "", err
	}

	change := types.SubscriptionChangeActivated
	if s.SubscriptionStatus == types.SubscriptionStatusCancelled {
		change = types.SubscriptionChangeReactivated
		s.CancelledAt = nil
		s.AutoRenewal = true
	} else {
		s.StartDate = now
	}

	s.SubscriptionStatus = types.SubscriptionStatusActive
	s.TrialEndDate = nil
	s.FailedBillingAttempts = 0
	return change, nil
}

// RecordSuccessfulBilling marks a successful charge: the subscription
// returns to ACTIVE, the failure counter resets and the next billing date
// advances by one cycle.
func (s *Subscription) RecordSuccessfulBilling(now time.Time) error {
	if err := s.guard("record_successful_billing",
		types.SubscriptionStatusActive,
		types.SubscriptionStatusSuspended,
		types.SubscriptionStatusExpired,
	); err != nil {
		return err
	}

	next, err := NextBillingDateFor(s)
	if err != nil {
		return err
	}

	s.SubscriptionStatus = types.SubscriptionStatusActive
	s.FailedBillingAttempts = 0
	s.LastBillingDate = &now
	s.NextBillingDate = &next
	return nil
}

// RecordFailedBilling increments the failure counter and suspends the
// subscription once maxAttempts is reached. Returns true when the failure
// caused a suspension.
func (s *Subscription) RecordFailedBilling(maxAttempts int) (bool, error) {
	if err := s.guard("record_failed_billing",
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrial,
		types.SubscriptionStatusExpired,
	); err != nil {
		return false, err
	}

	s.FailedBillingAttempts++
	if s.FailedBillingAttempts >= maxAttempts {
		s.SubscriptionStatus = types.SubscriptionStatusSuspended
		return true, nil
	}
	return false, nil
}

// Suspend forces the subscription into SUSPENDED. Admin only operation.
func (s *Subscription) Suspend() error {
	if err := s.guard("suspend",
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrial,
		types.SubscriptionStatusSuspended,
	); err != nil {
		return err
	}
	s.SubscriptionStatus = types.SubscriptionStatusSuspended
	return nil
}

// Cancel moves the subscription to CANCELLED, stamps the cancellation time
// and switches auto renewal off so no further billing is attempted.
func (s *Subscription) Cancel(now time.Time) error {
	if err := s.guard("cancel",
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrial,
		types.SubscriptionStatusSuspended,
	); err != nil {
		return err
	}
	s.SubscriptionStatus = types.SubscriptionStatusCancelled
	s.CancelledAt = &now
	s.AutoRenewal = false
	return nil
}

// Expire moves a subscription whose trial or billing ran out into EXPIRED.
// The grace period starts from the missed billing date.
func (s *Subscription) Expire() error {
	if err := s.guard("expire",
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrial,
	); err != nil {
		return err
	}
	s.SubscriptionStatus = types.SubscriptionStatusExpired
	return nil
}

// Terminate soft deletes the subscription. Terminal: no transition leads
// out of TERMINATED.
func (s *Subscription) Terminate(now time.Time) error {
	if s.SubscriptionStatus.IsTerminal() {
		return s.invalidTransition("terminate")
	}
	s.SubscriptionStatus = types.SubscriptionStatusTerminated
	s.AutoRenewal = false
	s.EndDate = &now
	return nil
}

// ApplyTierChange switches the subscription to a new tier with the prices
// already resolved from the tier catalog. Tier changes only apply to ACTIVE
// subscriptions and take effect immediately; the next billing date is not
// touched (no mid cycle proration). The top tier cannot be upgraded.
func (s *Subscription) ApplyTierChange(
	newTier types.SubscriptionTier,
	monthlyPrice decimal.Decimal,
	cyclePrice decimal.Decimal,
) (types.SubscriptionChangeType, error) {
	if err := s.guard("change_tier", types.SubscriptionStatusActive); err != nil {
		return "", err
	}
	if newTier == s.Tier {
		return "", ierr.NewError("tier unchanged").
			WithHintf("Subscription is already on tier %s", newTier).
			Mark(ierr.ErrInvalidOperation)
	}
	if s.Tier.IsHighestTier() && newTier.IsUpgradeFrom(s.Tier) {
		return "", ierr.NewError("cannot upgrade highest tier").
			WithHint("The subscription is already on the highest tier").
			WithReportableDetails(map[string]any{
				"current_tier": s.Tier,
				"target_tier":  newTier,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	change := types.SubscriptionChangeTierDowngraded
	if newTier.IsUpgradeFrom(s.Tier) {
		change = types.SubscriptionChangeTierUpgraded
	}

	s.Tier = newTier
	s.MonthlyPrice = monthlyPrice
	s.BillingAmount = ApplyDiscount(cyclePrice, s.PromotionDiscount)
	return change, nil
}

// ApplyBillingCycleChange switches the billing cycle, recomputes the
// billing amount for the new cycle and recalculates the next billing date
// from the start date under the new cycle.
func (s *Subscription) ApplyBillingCycleChange(
	cycle types.BillingCycle,
	cyclePrice decimal.Decimal,
) error {
	if err := s.guard("change_billing_cycle", types.SubscriptionStatusActive); err != nil {
		return err
	}
	if err := cycle.Validate(); err != nil {
		return err
	}

	next, err := types.NextBillingDate(s.StartDate, cycle)
	if err != nil {
		return err
	}

	s.BillingCycle = cycle
	s.BillingAmount = ApplyDiscount(cyclePrice, s.PromotionDiscount)
	s.NextBillingDate = &next
	return nil
}
