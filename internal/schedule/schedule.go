// Package schedule computes recurring billing dates.
//
// Every function here is pure: the caller passes "now" explicitly. Results keep
// the clock time and location of their anchor and only the calendar date moves.
// A day of month larger than the target month is clamped to the month's last day,
// so a template billed on the 31st lands on Feb 28 (or 29) and Apr 30.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

var (
	ErrInvalidFrequency  = errors.New("invalid_frequency")
	ErrInvalidDayOfMonth = errors.New("invalid_day_of_month")
)

func ParseFrequency(raw string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(raw)))
	if _, err := f.Months(); err != nil {
		return "", err
	}
	return f, nil
}

// Months is the length of one period.
func (f Frequency) Months() (int, error) {
	switch f {
	case FrequencyMonthly:
		return 1, nil
	case FrequencyQuarterly:
		return 3, nil
	case FrequencyYearly:
		return 12, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
}

func ValidateDayOfMonth(day int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("%w: %d", ErrInvalidDayOfMonth, day)
	}
	return nil
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextFromLastRun moves one period forward from last, or from now when the
// template has never run, and pins the result to dayOfMonth.
func NextFromLastRun(last *time.Time, now time.Time, frequency Frequency, dayOfMonth int) (time.Time, error) {
	anchor := now
	if last != nil && !last.IsZero() {
		anchor = *last
	}
	return advance(anchor, frequency, dayOfMonth)
}

// NextFromStart returns the first billing date for a template starting at start.
// If dayOfMonth has not been reached yet in the start month, billing happens that
// month; otherwise it waits one full period.
func NextFromStart(start time.Time, frequency Frequency, dayOfMonth int) (time.Time, error) {
	if err := ValidateDayOfMonth(dayOfMonth); err != nil {
		return time.Time{}, err
	}
	if start.Day() < dayOfMonth {
		if _, err := frequency.Months(); err != nil {
			return time.Time{}, err
		}
		return clamp(start.Year(), start.Month(), dayOfMonth, start), nil
	}
	return advance(start, frequency, dayOfMonth)
}

// NextAfter advances from anchor period by period until the result is strictly after now.
func NextAfter(anchor, now time.Time, frequency Frequency, dayOfMonth int) (time.Time, error) {
	next, err := advance(anchor, frequency, dayOfMonth)
	if err != nil {
		return time.Time{}, err
	}
	for !next.After(now) {
		if next, err = advance(next, frequency, dayOfMonth); err != nil {
			return time.Time{}, err
		}
	}
	return next, nil
}

// BillingDate is the invoice date for a run at now: midnight on dayOfMonth of the
// current month, or of the previous month when that day has not come yet.
func BillingDate(now time.Time, dayOfMonth int) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	date := clamp(now.Year(), now.Month(), dayOfMonth, midnight)
	if date.After(midnight) {
		date = clamp(now.Year(), now.Month()-1, dayOfMonth, midnight)
	}
	return date
}

func advance(anchor time.Time, frequency Frequency, dayOfMonth int) (time.Time, error) {
	if err := ValidateDayOfMonth(dayOfMonth); err != nil {
		return time.Time{}, err
	}
	months, err := frequency.Months()
	if err != nil {
		return time.Time{}, err
	}
	return clamp(anchor.Year(), anchor.Month()+time.Month(months), dayOfMonth, anchor), nil
}

// clamp builds day in the given month, normalizing month overflow first, with the
// clock time of ref.
func clamp(year int, month time.Month, day int, ref time.Time) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location())
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}
