package subscription

import (
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Billing cycle engine: pure date and money computations over a
// subscription, no side effects.

// NextBillingDateFor computes the next billing date for the subscription.
// When a next billing date is already set the cycle is re-applied from it,
// otherwise from the start date.
func NextBillingDateFor(s *Subscription) (time.Time, error) {
	base := s.StartDate
	if s.NextBillingDate != nil {
		base = *s.NextBillingDate
	}
	return types.NextBillingDate(base, s.BillingCycle)
}

// ApplyDiscount returns price reduced by the fractional discount,
// rounded half up to 2 decimal places
func ApplyDiscount(price decimal.Decimal, discount decimal.Decimal) decimal.Decimal {
	if discount.IsZero() {
		return price.Round(2)
	}
	return price.Mul(decimal.NewFromInt(1).Sub(discount)).Round(2)
}

// MonthlySavings returns the discount per month implied by committing to a
// longer billing cycle: monthlyPrice - billingAmount/cycleMonths, rounded
// half up to 2 decimal places. Zero for the monthly cycle.
func MonthlySavings(s *Subscription) decimal.Decimal {
	months := s.BillingCycle.Months()
	if months <= 1 {
		return decimal.Zero
	}
	effectiveMonthly := s.BillingAmount.Div(decimal.NewFromInt(int64(months)))
	return s.MonthlyPrice.Sub(effectiveMonthly).Round(2)
}

// DaysRemainingInCycle returns the number of whole days between now and the
// next billing date, 0 when no next billing date is set or it has passed
func DaysRemainingInCycle(s *Subscription, now time.Time) int {
	if s.NextBillingDate == nil {
		return 0
	}
	days := types.DaysBetween(now, *s.NextBillingDate)
	if days < 0 {
		return 0
	}
	return days
}

// GraceDeadline returns the end of the grace window after the missed
// billing date, nil when no billing date is set
func GraceDeadline(s *Subscription, graceDays int) *time.Time {
	if s.NextBillingDate == nil {
		return nil
	}
	deadline := s.NextBillingDate.Add(time.Duration(graceDays) * 24 * time.Hour)
	return &deadline
}
