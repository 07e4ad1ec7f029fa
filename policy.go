package nextdue

import (
	"fmt"
	"time"
)

// Decision is the outcome of evaluating a completed task for recurrence.
type Decision struct {
	// Generate reports whether a successor should be created.
	Generate bool
	// NextDue is the successor's due date. Only set when Generate is true.
	NextDue time.Time
	// Reason explains a negative decision ("not recurring", "series ended").
	Reason string
}

// Evaluate decides whether a completed task should spawn a successor.
// It reads only the snapshot and performs no mutation, so evaluating
// the same snapshot twice always yields the same decision.
//
// A nil or non-recurring spec is a terminal non-error. A malformed spec
// (interval < 1, unknown pattern) yields a PolicyError.
func Evaluate(t *Task) (Decision, error) {
	rec := t.Recurrence
	if rec == nil || !rec.IsRecurring {
		return Decision{Reason: "not recurring"}, nil
	}
	if rec.Interval < 1 {
		return Decision{}, &PolicyError{Reason: fmt.Sprintf("interval must be >= 1, got %d", rec.Interval)}
	}
	pattern, err := ParsePattern(rec.Pattern)
	if err != nil {
		return Decision{}, &PolicyError{Reason: "invalid recurrence pattern", Err: err}
	}
	next, err := NextOccurrence(t.DueAt, pattern, rec.Interval)
	if err != nil {
		return Decision{}, &PolicyError{Reason: "next occurrence", Err: err}
	}
	if rec.EndDate != nil && next.After(*rec.EndDate) {
		return Decision{Reason: "series ended"}, nil
	}
	return Decision{Generate: true, NextDue: next}, nil
}
