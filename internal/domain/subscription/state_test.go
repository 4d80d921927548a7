package subscription

import (
	"testing"
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscription(status types.SubscriptionStatus) *Subscription {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return &Subscription{
		ID:                 "subs_test",
		UserID:             "user_1",
		Tier:               types.SubscriptionTierPro,
		SubscriptionStatus: status,
		BillingCycle:       types.BillingCycleMonthly,
		Currency:           "usd",
		MonthlyPrice:       decimal.RequireFromString("29.99"),
		BillingAmount:      decimal.RequireFromString("29.99"),
		StartDate:          start,
		NextBillingDate:    &next,
		AutoRenewal:        true,
		Version:            1,
	}
}

func TestActivateFromPending(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusPending)
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	change, err := sub.Activate(now)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionChangeActivated, change)
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)
	assert.Equal(t, now, sub.StartDate)
	assert.Nil(t, sub.TrialEndDate)
	assert.Zero(t, sub.FailedBillingAttempts)
}

func TestActivateFromTrial(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusTrial)
	trialEnd := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sub.TrialEndDate = &trialEnd
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	change, err := sub.Activate(now)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionChangeActivated, change)
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)
	assert.Nil(t, sub.TrialEndDate)
}

func TestReactivateFromCancelled(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusCancelled)
	cancelledAt := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	sub.CancelledAt = &cancelledAt
	sub.AutoRenewal = false

	change, err := sub.Activate(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionChangeReactivated, change)
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)
	assert.Nil(t, sub.CancelledAt)
	assert.True(t, sub.AutoRenewal)
}

func TestActivateRejectedStatuses(t *testing.T) {
	for _, status := range []types.SubscriptionStatus{
		types.SubscriptionStatusActive,
		types.SubscriptionStatusSuspended,
		types.SubscriptionStatusExpired,
		types.SubscriptionStatusTerminated,
	} {
		sub := newTestSubscription(status)
		_, err := sub.Activate(time.Now().UTC())
		assert.True(t, ierr.IsInvalidOperation(err), "status %s", status)
		assert.Equal(t, status, sub.SubscriptionStatus)
	}
}

func TestRecordSuccessfulBilling(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)
	sub.FailedBillingAttempts = 2
	now := time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)

	require.NoError(t, sub.RecordSuccessfulBilling(now))
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)
	assert.Zero(t, sub.FailedBillingAttempts)
	assert.Equal(t, now, *sub.LastBillingDate)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *sub.NextBillingDate)
}

func TestRecordSuccessfulBillingRecoversSuspended(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusSuspended)
	require.NoError(t, sub.RecordSuccessfulBilling(time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func TestRecordFailedBillingSuspendsAtMax(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)

	suspended, err := sub.RecordFailedBilling(3)
	require.NoError(t, err)
	assert.False(t, suspended)
	assert.Equal(t, 1, sub.FailedBillingAttempts)
	assert.Equal(t, types.SubscriptionStatusActive, sub.SubscriptionStatus)

	suspended, err = sub.RecordFailedBilling(3)
	require.NoError(t, err)
	assert.False(t, suspended)
	assert.Equal(t, 2, sub.FailedBillingAttempts)

	suspended, err = sub.RecordFailedBilling(3)
	require.NoError(t, err)
	assert.True(t, suspended)
	assert.Equal(t, 3, sub.FailedBillingAttempts)
	assert.Equal(t, types.SubscriptionStatusSuspended, sub.SubscriptionStatus)
}

func TestCancel(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sub.Cancel(now))
	assert.Equal(t, types.SubscriptionStatusCancelled, sub.SubscriptionStatus)
	assert.Equal(t, now, *sub.CancelledAt)
	assert.False(t, sub.AutoRenewal)

	// A cancelled subscription cannot be cancelled again
	err := sub.Cancel(now)
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestExpire(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusTrial)
	require.NoError(t, sub.Expire())
	assert.Equal(t, types.SubscriptionStatusExpired, sub.SubscriptionStatus)

	sub = newTestSubscription(types.SubscriptionStatusSuspended)
	assert.True(t, ierr.IsInvalidOperation(sub.Expire()))
}

func TestTerminateIsTerminal(t *testing.T) {
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	for _, status := range []types.SubscriptionStatus{
		types.SubscriptionStatusPending,
		types.SubscriptionStatusTrial,
		types.SubscriptionStatusActive,
		types.SubscriptionStatusSuspended,
		types.SubscriptionStatusExpired,
		types.SubscriptionStatusCancelled,
	} {
		sub := newTestSubscription(status)
		require.NoError(t, sub.Terminate(now), "status %s", status)
		assert.Equal(t, types.SubscriptionStatusTerminated, sub.SubscriptionStatus)
		assert.False(t, sub.AutoRenewal)
		assert.Equal(t, now, *sub.EndDate)

		// No transition leads out of terminated
		_, err := sub.Activate(now)
		assert.True(t, ierr.IsInvalidOperation(err))
		assert.True(t, ierr.IsInvalidOperation(sub.Cancel(now)))
		assert.True(t, ierr.IsInvalidOperation(sub.Suspend()))
		assert.True(t, ierr.IsInvalidOperation(sub.Terminate(now)))
	}
}

func TestApplyTierChange(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)
	originalNext := *sub.NextBillingDate

	change, err := sub.ApplyTierChange(
		types.SubscriptionTierAIPremium,
		decimal.RequireFromString("79.99"),
		decimal.RequireFromString("79.99"),
	)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionChangeTierUpgraded, change)
	assert.Equal(t, types.SubscriptionTierAIPremium, sub.Tier)
	assert.True(t, sub.BillingAmount.Equal(decimal.RequireFromString("79.99")))
	// Tier changes never move the next billing date
	assert.Equal(t, originalNext, *sub.NextBillingDate)

	change, err = sub.ApplyTierChange(
		types.SubscriptionTierPro,
		decimal.RequireFromString("29.99"),
		decimal.RequireFromString("29.99"),
	)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionChangeTierDowngraded, change)
}

func TestApplyTierChangeGuards(t *testing.T) {
	// Same tier is rejected
	sub := newTestSubscription(types.SubscriptionStatusActive)
	_, err := sub.ApplyTierChange(types.SubscriptionTierPro, decimal.Zero, decimal.Zero)
	assert.True(t, ierr.IsInvalidOperation(err))

	// Only active subscriptions change tier
	sub = newTestSubscription(types.SubscriptionStatusSuspended)
	_, err = sub.ApplyTierChange(types.SubscriptionTierAIPremium, decimal.Zero, decimal.Zero)
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestApplyTierChangeAppliesDiscount(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)
	sub.PromotionDiscount = decimal.RequireFromString("0.2")

	_, err := sub.ApplyTierChange(
		types.SubscriptionTierAIPremium,
		decimal.RequireFromString("79.99"),
		decimal.RequireFromString("79.99"),
	)
	require.NoError(t, err)
	assert.True(t, sub.BillingAmount.Equal(decimal.RequireFromString("63.99")),
		"got %s", sub.BillingAmount)
}

func TestApplyBillingCycleChange(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)

	err := sub.ApplyBillingCycleChange(types.BillingCycleAnnual, decimal.RequireFromString("299.99"))
	require.NoError(t, err)
	assert.Equal(t, types.BillingCycleAnnual, sub.BillingCycle)
	assert.True(t, sub.BillingAmount.Equal(decimal.RequireFromString("299.99")))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *sub.NextBillingDate)
}

func TestValidate(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)
	assert.NoError(t, sub.Validate())

	bad := newTestSubscription(types.SubscriptionStatusActive)
	end := bad.StartDate.Add(-time.Hour)
	bad.EndDate = &end
	assert.True(t, ierr.IsValidation(bad.Validate()))

	bad = newTestSubscription(types.SubscriptionStatusActive)
	bad.PromotionDiscount = decimal.RequireFromString("1.5")
	assert.True(t, ierr.IsValidation(bad.Validate()))
}
