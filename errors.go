package nextdue

import (
	"errors"
	"fmt"
)

// ErrDuplicateEvent is returned when Publish is called with an event ID that
// was already published to the stream.
var ErrDuplicateEvent = errors.New("nextdue: duplicate event id")

// ErrDuplicateSuccessor is returned by a TaskStore when a successor with the
// same series identity has already been persisted.
var ErrDuplicateSuccessor = errors.New("nextdue: successor already exists")

// ErrUnknownState is returned when an invalid stream state is used.
var ErrUnknownState = errors.New("nextdue: unknown state")

// ErrEventNotFound is returned when an event with the specified ID is not found.
var ErrEventNotFound = errors.New("nextdue: event not found")

// UnsupportedPatternError reports a recurrence pattern value outside the
// closed Pattern set. It is permanent: retrying cannot fix the data.
type UnsupportedPatternError struct {
	// Pattern is the offending raw value.
	Pattern string
}

func (e *UnsupportedPatternError) Error() string {
	return fmt.Sprintf("nextdue: unsupported recurrence pattern %q", e.Pattern)
}

// PolicyError reports a malformed recurrence spec or event. Permanent:
// the event is dead-lettered without retry.
type PolicyError struct {
	Reason string
	Err    error
}

func (e *PolicyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nextdue: policy: %s: %v", e.Reason, e.Err)
	}
	return "nextdue: policy: " + e.Reason
}

func (e *PolicyError) Unwrap() error { return e.Err }

// StoreError wraps a transient persistence failure; the delivery is
// retried with backoff.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("nextdue: store: %v", e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// PublishError wraps a failure to announce a successor after it was
// persisted. Retries must re-publish, never re-create.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return fmt.Sprintf("nextdue: publish: %v", e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }

// IsPermanent reports whether err represents bad data rather than a
// transient fault. Permanent failures go straight to the dead letter
// list; transient ones are retried with backoff.
func IsPermanent(err error) bool {
	var pe *PolicyError
	var upe *UnsupportedPatternError
	return errors.As(err, &pe) || errors.As(err, &upe)
}
