package nextdue

import "context"

// TaskStore is the persistence contract the engine consumes. The engine
// only ever inserts fresh successor rows; it never updates the
// completed task.
//
// Save must return ErrDuplicateSuccessor (possibly wrapped) when a task
// with the same identity has already been persisted, so retried
// deliveries re-publish instead of re-creating. Any other error is
// treated as transient and retried with backoff.
type TaskStore interface {
	Save(ctx context.Context, t *Task) error
}
