package nextdue

import "time"

// NextOccurrence computes the due date of the next occurrence given the
// current due date, a pattern and an interval multiplier. It is pure:
// the wall-clock time of day and location of current are preserved in
// all cases, and month/year advances never overflow into the following
// month (Jan 31 + 1 month is the last day of February; Feb 29 + 1 year
// lands on Feb 28 when the target year is not a leap year).
//
// The only possible error is an UnsupportedPatternError for a pattern
// outside the closed set.
func NextOccurrence(current time.Time, pattern Pattern, interval int) (time.Time, error) {
	switch pattern {
	case PatternDaily:
		return current.AddDate(0, 0, interval), nil
	case PatternWeekly:
		return current.AddDate(0, 0, 7*interval), nil
	case PatternMonthly:
		return addMonthsClamped(current, interval), nil
	case PatternYearly:
		return addYearsClamped(current, interval), nil
	default:
		return time.Time{}, &UnsupportedPatternError{Pattern: pattern.String()}
	}
}

// addMonthsClamped advances t by the given number of months, clamping
// the day to the last valid day of the target month instead of letting
// time.AddDate normalize into the month after.
func addMonthsClamped(t time.Time, months int) time.Time {
	// Anchor on day 1 so time.Date normalizes only the month arithmetic.
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addYearsClamped advances t by the given number of years, keeping the
// month and clamping Feb 29 to Feb 28 on non-leap targets.
func addYearsClamped(t time.Time, years int) time.Time {
	year := t.Year() + years
	day := t.Day()
	if last := daysInMonth(year, t.Month()); day > last {
		day = last
	}
	return time.Date(year, t.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month. Day 0 of
// the following month normalizes to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
