package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddClampedMonths(t *testing.T) {
	tests := []struct {
		name   string
		base   time.Time
		months int
		want   time.Time
	}{
		{"regular", date(2025, time.March, 15), 1, date(2025, time.April, 15)},
		{"jan 31 clamps to feb 28", date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{"jan 31 leap year clamps to feb 29", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"may 31 clamps to jun 30", date(2025, time.May, 31), 1, date(2025, time.June, 30)},
		{"year rollover", date(2025, time.November, 15), 3, date(2026, time.February, 15)},
		{"twelve months", date(2025, time.June, 30), 12, date(2026, time.June, 30)},
		{"feb 29 plus a year clamps to feb 28", date(2024, time.February, 29), 12, date(2025, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddClampedMonths(tt.base, tt.months))
		})
	}
}

func TestAddClampedMonthsKeepsClock(t *testing.T) {
	base := time.Date(2025, time.January, 31, 13, 45, 30, 0, time.UTC)
	got := AddClampedMonths(base, 1)
	assert.Equal(t, time.Date(2025, time.February, 28, 13, 45, 30, 0, time.UTC), got)
}

func TestNextBillingDate(t *testing.T) {
	base := date(2025, time.January, 15)

	next, err := NextBillingDate(base, BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 15), next)

	next, err = NextBillingDate(base, BillingCycleQuarterly)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 15), next)

	next, err = NextBillingDate(base, BillingCycleAnnual)
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.January, 15), next)

	_, err = NextBillingDate(base, BillingCycle("WEEKLY"))
	assert.Error(t, err)
}

func TestBillingCycleMonths(t *testing.T) {
	assert.Equal(t, 1, BillingCycleMonthly.Months())
	assert.Equal(t, 3, BillingCycleQuarterly.Months())
	assert.Equal(t, 12, BillingCycleAnnual.Months())
	assert.Equal(t, 0, BillingCycle("WEEKLY").Months())
}

func TestDaysBetween(t *testing.T) {
	from := date(2025, time.January, 1)
	assert.Equal(t, 14, DaysBetween(from, date(2025, time.January, 15)))
	assert.Equal(t, 0, DaysBetween(from, from.Add(12*time.Hour)))
	assert.Equal(t, -1, DaysBetween(from, from.Add(-25*time.Hour)))
}
