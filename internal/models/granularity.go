package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrInvalidAlignment   = errors.New("invalid alignment")
)

// Granularity is the time-aggregation level of a table.
type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// ParseGranularity accepts the lowercase names and the dashboard labels ("Daily", ...).
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

// Lag is the number of periods used for a year-over-year comparison.
func (g Granularity) Lag() int {
	switch g {
	case Monthly:
		return 12
	case Yearly:
		return 1
	default:
		return 365
	}
}

// PeriodStart normalizes t to the first day of its period, in UTC.
func (g Granularity) PeriodStart(t time.Time) time.Time {
	y, m, d := t.Date()
	switch g {
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Shift moves t by n periods (negative n goes back).
func (g Granularity) Shift(t time.Time, n int) time.Time {
	switch g {
	case Monthly:
		return t.AddDate(0, n, 0)
	case Yearly:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// Alignment selects how the change calculator finds the base value of a period.
type Alignment string

const (
	// AlignCalendar compares against the value exactly one lag of calendar time earlier.
	AlignCalendar Alignment = "calendar"
	// AlignPosition compares against the value N rows earlier on the shared date axis.
	AlignPosition Alignment = "position"
)

// ParseAlignment validates an alignment name. Empty selects AlignCalendar.
func ParseAlignment(s string) (Alignment, error) {
	switch Alignment(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlignCalendar:
		return AlignCalendar, nil
	case AlignPosition:
		return AlignPosition, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAlignment, s)
}
