package nextdue

import (
	"math"
	"time"
)

// Backoff is a bounded-attempt exponential backoff policy. It is a
// plain value injected into the engine so retry behavior stays out of
// the pipeline logic and can be tuned (or zeroed in tests) without
// touching it.
type Backoff struct {
	// MaxAttempts is the delivery ceiling; once reached the event is
	// dead-lettered.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier scales the delay per subsequent attempt.
	Multiplier float64
	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultBackoff returns the policy used when none is configured:
// five attempts starting at one second, doubling, capped at two minutes.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    2 * time.Minute,
	}
}

// Delay returns the wait before the given 1-based retry attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(b.BaseDelay) * math.Pow(mult, float64(attempt-1)))
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	return d
}

// Exhausted reports whether the given attempt count has reached the ceiling.
func (b Backoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}
