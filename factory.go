package nextdue

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// seriesNamespace is the fixed UUID namespace for deriving successor
// identities. Changing it would break duplicate detection for series
// that already have persisted successors.
var seriesNamespace = uuid.MustParse("9f2c1af6-3d52-4f4e-9a6d-2b7c81e0d3a4")

// SuccessorID derives the deterministic identity of the occurrence at
// the given 1-based position within a series. Duplicate deliveries of
// the same completion event therefore converge on the same task ID.
func SuccessorID(seriesID string, occurrence int) string {
	return uuid.NewSHA1(seriesNamespace, []byte(seriesID+":"+strconv.Itoa(occurrence))).String()
}

// BuildSuccessor constructs the next occurrence from a completed task
// and its computed due date. It performs no I/O; the caller persists
// the returned task and publishes its creation event.
//
// Descriptive fields and the recurrence spec are copied forward
// verbatim; operational fields are reset; lineage fields advance. An
// absent occurrence counter is treated as 1, so the first successor
// carries 2.
func BuildSuccessor(completed *Task, nextDue, now time.Time) *Task {
	seriesID := completed.SeriesID()
	occurrence := completed.Recurrence.Occurrence
	if occurrence < 1 {
		occurrence = 1
	}
	occurrence++

	var remindAt *time.Time
	if completed.RemindAt != nil {
		lead := completed.DueAt.Sub(*completed.RemindAt)
		r := nextDue.Add(-lead)
		remindAt = &r
	}

	rec := *completed.Recurrence
	rec.OriginalTaskID = seriesID
	rec.Occurrence = occurrence

	return &Task{
		ID:          SuccessorID(seriesID, occurrence),
		Title:       completed.Title,
		Description: completed.Description,
		Priority:    completed.Priority,
		Tags:        completed.Tags,
		DueAt:       nextDue,
		RemindAt:    remindAt,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Recurrence:  &rec,
	}
}
