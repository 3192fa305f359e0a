package leave

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// CalculateDays returns inclusive day count between start and end.
func CalculateDays(start, end time.Time) (decimal.Decimal, error) {
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return decimal.Zero, errors.New("end date before start date")
	}
	return decimal.NewFromInt(int64(end.Sub(start).Hours()/24) + 1), nil
}

// CalculateRequestDays returns inclusive leave day count with optional half-day start/end boundaries.
func CalculateRequestDays(start, end time.Time, startHalf, endHalf bool) (decimal.Decimal, error) {
	days, err := CalculateDays(start, end)
	if err != nil {
		return decimal.Zero, err
	}

	sameDay := dateOnly(start).Equal(dateOnly(end))
	if sameDay && startHalf && endHalf {
		return decimal.Zero, errors.New("invalid half-day range")
	}

	if startHalf {
		days = days.Sub(half)
	}
	if endHalf {
		days = days.Sub(half)
	}
	if !days.IsPositive() {
		return decimal.Zero, errors.New("invalid half-day range")
	}
	return days, nil
}

// IsHalfDayMultiple reports whether days is a whole number of half days.
func IsHalfDayMultiple(days decimal.Decimal) bool {
	return days.Mod(half).IsZero()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
