package nextdue

// Pattern is a recurrence pattern. The set is closed: calendar
// arithmetic dispatches totally over the constants below, so a new
// pattern is a compile-time extension rather than a string branch.
type Pattern string

const (
	// PatternDaily advances the due date by N days.
	PatternDaily Pattern = "daily"
	// PatternWeekly advances the due date by N*7 days, preserving the
	// day of week.
	PatternWeekly Pattern = "weekly"
	// PatternMonthly advances the month by N, clamping to the last
	// valid day of the target month.
	PatternMonthly Pattern = "monthly"
	// PatternYearly advances the year by N, clamping Feb 29 to Feb 28
	// on non-leap targets.
	PatternYearly Pattern = "yearly"
)

// AllPatterns lists every valid recurrence pattern in a stable order.
var AllPatterns = []Pattern{PatternDaily, PatternWeekly, PatternMonthly, PatternYearly}

// String returns the raw string value of the pattern.
func (p Pattern) String() string { return string(p) }

// ParsePattern converts a raw string into a Pattern, returning an
// UnsupportedPatternError carrying the offending value otherwise.
func ParsePattern(s string) (Pattern, error) {
	switch s {
	case string(PatternDaily):
		return PatternDaily, nil
	case string(PatternWeekly):
		return PatternWeekly, nil
	case string(PatternMonthly):
		return PatternMonthly, nil
	case string(PatternYearly):
		return PatternYearly, nil
	default:
		return "", &UnsupportedPatternError{Pattern: s}
	}
}
