package absence

import (
	"time"
)

// =============================================================================
// DATE - Calendar day in fixed-width YYYY-MM-DD form
// =============================================================================

// DateLayout is the only accepted textual date format.
const DateLayout = "2006-01-02"

// Date is a calendar day with no timezone. Because the format is fixed-width,
// lexicographic order equals chronological order, so range queries can
// compare the strings directly.
type Date string

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func DateOf(t time.Time) Date { return Date(t.Format(DateLayout)) }

// ParseDate accepts only real calendar days ("2023-02-29" is rejected).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return "", &ValidationError{Field: "date", Message: "expected a calendar date in YYYY-MM-DD form, got " + quote(s)}
	}
	return Date(s), nil
}

func (d Date) Valid() bool {
	_, err := ParseDate(string(d))
	return err == nil
}

// Time returns midnight UTC of the day, or the zero time for invalid dates.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) AddDays(n int) Date         { return DateOf(d.Time().AddDate(0, 0, n)) }
func (d Date) Previous() Date             { return d.AddDays(-1) }
func (d Date) Year() int                  { return d.Time().Year() }
func (d Date) Month() time.Month          { return d.Time().Month() }
func (d Date) Day() int                   { return d.Time().Day() }
func (d Date) String() string             { return string(d) }
func (d Date) Before(o Date) bool         { return d < o }
func (d Date) InRange(from, to Date) bool { return from <= d && d <= to }

// =============================================================================
// MONTH UTILITIES
// =============================================================================

// DaysInMonth accounts for leap years.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1).Day()
}

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }
func EndOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// MonthBounds returns the closed range [first, last] of a month.
func MonthBounds(year int, month time.Month) (Date, Date, error) {
	if month < time.January || month > time.December {
		return "", "", &ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}
	if year < 1 || year > 9999 {
		return "", "", &ValidationError{Field: "year", Message: "must be between 1 and 9999"}
	}
	return StartOfMonth(year, month), EndOfMonth(year, month), nil
}

func quote(s string) string { return `"` + s + `"` }
