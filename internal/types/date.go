package types

import (
	"fmt"
	"time"
)

// NextBillingDate returns start advanced by unit billing periods.
// Month based periods clamp to the last day of the target month, so
// Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
func NextBillingDate(start time.Time, unit int, period BillingPeriod) (time.Time, error) {
	if unit <= 0 {
		return start, fmt.Errorf("billing period unit must be a positive integer, got %d", unit)
	}

	switch period {
	case BILLING_PERIOD_DAILY:
		return start.AddDate(0, 0, unit), nil
	case BILLING_PERIOD_WEEKLY:
		return start.AddDate(0, 0, 7*unit), nil
	case BILLING_PERIOD_MONTHLY:
		return AddClampedDate(start, 0, unit, 0), nil
	case BILLING_PERIOD_QUARTERLY:
		return AddClampedDate(start, 0, 3*unit, 0), nil
	case BILLING_PERIOD_ANNUAL:
		return AddClampedDate(start, unit, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing period type: %s", period)
	}
}

// AddClampedDate adds years and months keeping the day of month within the target month,
// then adds days without clamping.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := int(m) + months
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// day 0 of the following month is the last day of newM
	lastDay := time.Date(newY, time.Month(newM)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}

	return time.Date(newY, time.Month(newM), d+days, h, min, sec, t.Nanosecond(), t.Location())
}
