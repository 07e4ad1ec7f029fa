package nextdue

import "time"

// Status is the lifecycle state of a task occurrence.
type Status string

const (
	// StatusPending marks a task that has not been completed yet.
	StatusPending Status = "pending"
	// StatusCompleted marks a task that was finished by its owner.
	StatusCompleted Status = "completed"
)

// Task is the snapshot of a task occurrence as carried on the event
// stream. The engine only ever reads completed snapshots and creates
// fresh successor records; it never mutates an existing task.
type Task struct {
	// ID is the unique identifier of this occurrence.
	ID string `json:"id"`
	// Title is copied forward verbatim to every successor.
	Title string `json:"title"`
	// Description is copied forward verbatim to every successor.
	Description string `json:"description,omitempty"`
	// Priority is a free-form label (e.g. "high"), copied forward.
	Priority string `json:"priority,omitempty"`
	// Tags is a comma-separated label list, copied forward.
	Tags string `json:"tags,omitempty"`
	// DueAt anchors all recurrence computation.
	DueAt time.Time `json:"due_at"`
	// RemindAt, when set, keeps the same lead time relative to DueAt
	// across occurrences.
	RemindAt *time.Time `json:"remind_at,omitempty"`
	// Status is reset to StatusPending on every generated occurrence.
	Status Status `json:"status"`
	// CompletedAt is cleared on generated occurrences.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// CreatedAt and UpdatedAt are set to generation time on successors.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Recurrence is attached by the task service at creation time and
	// gates all engine activity. Nil for one-off tasks.
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// Recurrence describes how a task repeats. It is immutable across a
// series except for Occurrence, which the engine increments on each
// generated successor.
type Recurrence struct {
	// IsRecurring gates generation; false means the task never recurs.
	IsRecurring bool `json:"is_recurring"`
	// Pattern is the raw pattern value ("daily", "weekly", "monthly",
	// "yearly"). Parsed and validated by the policy evaluator.
	Pattern string `json:"pattern"`
	// Interval is the pattern-unit multiplier ("every N"). Must be >= 1.
	Interval int `json:"interval"`
	// EndDate, when set, is the inclusive upper bound for successor
	// due dates; no successor strictly after it is ever created.
	EndDate *time.Time `json:"end_date,omitempty"`
	// OriginalTaskID identifies the first task of the series. Stable
	// across the whole chain. Empty on the original task itself.
	OriginalTaskID string `json:"original_task_id,omitempty"`
	// Occurrence is this task's 1-based position in the series. A
	// missing value is treated as 1.
	Occurrence int `json:"occurrence_number,omitempty"`
}

// SeriesID returns the identifier shared by every occurrence of the
// task's series: OriginalTaskID when set, otherwise the task's own ID
// (the task is the root of its chain).
func (t *Task) SeriesID() string {
	if t.Recurrence != nil && t.Recurrence.OriginalTaskID != "" {
		return t.Recurrence.OriginalTaskID
	}
	return t.ID
}
