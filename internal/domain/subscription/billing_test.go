package subscription

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDiscount(t *testing.T) {
	price := decimal.RequireFromString("29.99")

	assert.True(t, ApplyDiscount(price, decimal.Zero).Equal(price))
	assert.True(t, ApplyDiscount(price, decimal.RequireFromString("0.1")).
		Equal(decimal.RequireFromString("26.99")))
	assert.True(t, ApplyDiscount(price, decimal.NewFromInt(1)).Equal(decimal.Zero))

	// Rounding is half up to 2 decimal places
	assert.True(t, ApplyDiscount(decimal.RequireFromString("10.00"), decimal.RequireFromString("0.333")).
		Equal(decimal.RequireFromString("6.67")))
}

func TestMonthlySavings(t *testing.T) {
	// Annual PRO: 29.99/month list price vs 299.99/year
	sub := newTestSubscription(types.SubscriptionStatusActive)
	sub.BillingCycle = types.BillingCycleAnnual
	sub.BillingAmount = decimal.RequireFromString("299.99")

	assert.True(t, MonthlySavings(sub).Equal(decimal.RequireFromString("4.99")),
		"got %s", MonthlySavings(sub))

	// Monthly cycle has no commitment savings
	sub = newTestSubscription(types.SubscriptionStatusActive)
	assert.True(t, MonthlySavings(sub).Equal(decimal.Zero))
}

func TestNextBillingDateFor(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)

	// From the set next billing date
	next, err := NextBillingDateFor(sub)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), next)

	// Falls back to the start date when unset
	sub.NextBillingDate = nil
	next, err = NextBillingDateFor(sub)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), next)
}

func TestDaysRemainingInCycle(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)

	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, DaysRemainingInCycle(sub, now))

	// Past the billing date reports zero
	assert.Equal(t, 0, DaysRemainingInCycle(sub, time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)))

	sub.NextBillingDate = nil
	assert.Equal(t, 0, DaysRemainingInCycle(sub, now))
}

func TestGracePeriod(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusExpired)

	// Next billing was Feb 1, grace is 3 days
	inside := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)

	assert.True(t, sub.IsInGracePeriod(inside, 3))
	assert.False(t, sub.IsInGracePeriod(outside, 3))

	// Grace only applies to expired subscriptions
	active := newTestSubscription(types.SubscriptionStatusActive)
	assert.False(t, active.IsInGracePeriod(inside, 3))

	// Feature access survives through the grace window
	assert.True(t, sub.HasFeatureAccess(inside, 3))
	assert.False(t, sub.HasFeatureAccess(outside, 3))
}

func TestGraceDeadline(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusExpired)
	deadline := GraceDeadline(sub, 3)
	require.NotNil(t, deadline)
	assert.Equal(t, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), *deadline)

	sub.NextBillingDate = nil
	assert.Nil(t, GraceDeadline(sub, 3))
}

func TestIsDueForBilling(t *testing.T) {
	sub := newTestSubscription(types.SubscriptionStatusActive)

	assert.False(t, sub.IsDueForBilling(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.True(t, sub.IsDueForBilling(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))

	sub.AutoRenewal = false
	assert.False(t, sub.IsDueForBilling(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
}
