package nextdue

import "time"

type options struct {
	id            string
	delay         time.Duration
	maxAttempts   int
	deadRetention time.Duration
}

// Option configures event behavior during Publish or RetryDead.
type Option func(*options)

// EventID sets a custom ID for the event. If not provided, a random
// UUID is generated. Publishing the same ID twice on one stream returns
// ErrDuplicateEvent, which is how creation events stay idempotent under
// redelivery.
func EventID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// Delay makes the event deliverable only after the specified duration.
func Delay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

// MaxAttempts sets the delivery ceiling for the event; after this many
// failed deliveries it is moved to the dead list.
func MaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// DeadRetention sets how long the event is kept on the dead list after
// it permanently fails. Zero drops it immediately; negative keeps it
// forever (the default).
func DeadRetention(d time.Duration) Option {
	return func(o *options) {
		o.deadRetention = d
	}
}
