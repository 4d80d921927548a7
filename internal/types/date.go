package types

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
)

// NextBillingDate calculates the next billing date from the given base time
// for one billing cycle. Month arithmetic is calendar aware: adding a month
// to Jan 31 lands on the last day of February rather than spilling into
// March.
func NextBillingDate(base time.Time, cycle BillingCycle) (time.Time, error) {
	months := cycle.Months()
	if months <= 0 {
		return base, ierr.NewError("invalid billing cycle").
			WithHintf("Cannot compute next billing date for cycle %s", cycle).
			Mark(ierr.ErrValidation)
	}
	return AddClampedMonths(base, months), nil
}

// AddClampedMonths adds the given number of months to t, clamping the day of
// month to the last valid day of the target month. time.AddDate is not used
// because it normalizes overflow (Jan 31 + 1 month = Mar 2/3).
func AddClampedMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y
	newM := time.Month(int(m) + months)
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the target month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// DaysBetween returns the number of whole days from `from` to `to`,
// flooring partial days. Negative when `to` is before `from`.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
