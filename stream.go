package nextdue

import (
	"context"
	"time"

	ikeys "github.com/NextDue/nextdue-go/internal/keys"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Stream is a client for one named task lifecycle stream backed by
// Redis. Producers publish completion and creation events with it; the
// engine and other consumers drain the stream's pending list.
type Stream struct {
	rdb     redis.UniversalClient
	name    string
	encoder Encoder
}

// NewStream creates a client for the named stream.
func NewStream(rdb redis.UniversalClient, name string) *Stream {
	return &Stream{rdb: rdb, name: name, encoder: &JSONEncoder{}}
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// Publish adds an event carrying the given task snapshot to the stream.
// It returns ErrDuplicateEvent if the event ID (explicit or generated)
// was already published here; publishers that derive the ID from the
// task identity therefore get idempotent publishes for free.
func (s *Stream) Publish(ctx context.Context, eventType string, task *Task, opts ...Option) error {
	cfg := &options{
		deadRetention: -1 * time.Second, // default: keep dead events forever
	}
	for _, opt := range opts {
		opt(cfg)
	}

	id := cfg.id
	if id == "" {
		id = uuid.NewString()
	}

	// Uniqueness check: reserve the event ID in the stream's de-dup set.
	ukey := ikeys.Unique(s.name)
	ok, err := s.rdb.SAdd(ctx, ukey, id).Result()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrDuplicateEvent
	}

	ev := Event{
		ID:        id,
		Type:      eventType,
		TaskID:    task.ID,
		Timestamp: time.Now().UTC(),
		Task:      task,
	}
	raw, err := s.encoder.Encode(struct {
		Event
		MaxAttempts   int   `json:"max_attempts,omitempty"`
		DeadRetention int64 `json:"dead_retention,omitempty"`
	}{
		Event:         ev,
		MaxAttempts:   cfg.maxAttempts,
		DeadRetention: int64(cfg.deadRetention.Seconds()),
	})
	if err != nil {
		_ = s.rdb.SRem(ctx, ukey, id).Err()
		return err
	}

	var opErr error
	if cfg.delay > 0 {
		opErr = s.rdb.ZAdd(ctx, ikeys.Delayed(s.name), redis.Z{
			Score:  float64(time.Now().Add(cfg.delay).Unix()),
			Member: raw,
		}).Err()
	} else {
		opErr = s.rdb.LPush(ctx, ikeys.Pending(s.name), raw).Err()
	}
	if opErr != nil {
		// Roll back the uniqueness reservation on failure.
		_ = s.rdb.SRem(ctx, ukey, id).Err()
		return opErr
	}
	return nil
}

// PublishCompleted publishes a TaskCompleted event for the given snapshot.
func (s *Stream) PublishCompleted(ctx context.Context, task *Task, opts ...Option) error {
	return s.Publish(ctx, EventTaskCompleted, task, opts...)
}

// PublishCreated publishes a TaskCreated event for the given snapshot.
func (s *Stream) PublishCreated(ctx context.Context, task *Task, opts ...Option) error {
	return s.Publish(ctx, EventTaskCreated, task, opts...)
}

// EventFilter is a function used to filter events during ListEvents.
type EventFilter func(*Event) bool

// ListEvents returns the events currently held in the given state,
// optionally filtered. Intended for diagnostics and dead-letter
// inspection.
func (s *Stream) ListEvents(ctx context.Context, state State, filter EventFilter) ([]*Event, error) {
	var strs []string
	var err error
	switch state {
	case StatePending:
		strs, err = s.rdb.LRange(ctx, ikeys.Pending(s.name), 0, -1).Result()
	case StateDead:
		strs, err = s.rdb.LRange(ctx, ikeys.Dead(s.name), 0, -1).Result()
	case StateActive:
		strs, err = s.rdb.ZRange(ctx, ikeys.Active(s.name), 0, -1).Result()
	case StateDelayed:
		strs, err = s.rdb.ZRange(ctx, ikeys.Delayed(s.name), 0, -1).Result()
	case StateSucceeded:
		strs, err = s.rdb.ZRange(ctx, ikeys.Succeeded(s.name), 0, -1).Result()
	default:
		return nil, ErrUnknownState
	}
	if err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]*Event, 0, len(strs))
	for _, str := range strs {
		var ev Event
		if err := s.encoder.Decode([]byte(str), &ev); err == nil {
			if filter == nil || filter(&ev) {
				out = append(out, &ev)
			}
		}
	}
	return out, nil
}

// RetryDead moves a dead event back to the pending list (or delayed,
// when a Delay option is given) with its attempt counter and error
// context reset. It returns ErrEventNotFound if no dead event carries
// the given ID.
func (s *Stream) RetryDead(ctx context.Context, id string, opts ...Option) error {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}

	strs, err := s.rdb.LRange(ctx, ikeys.Dead(s.name), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	type deadRec struct {
		Event
		Attempt       int    `json:"attempt,omitempty"`
		MaxAttempts   int    `json:"max_attempts,omitempty"`
		DeadRetention int64  `json:"dead_retention,omitempty"`
		LastError     string `json:"last_error,omitempty"`
		LastErrorAt   int64  `json:"last_error_at,omitempty"`
	}
	for _, str := range strs {
		var rec deadRec
		if err := s.encoder.Decode([]byte(str), &rec); err != nil || rec.ID != id {
			continue
		}
		rec.Attempt = 0
		rec.LastError = ""
		rec.LastErrorAt = 0
		if cfg.maxAttempts > 0 {
			rec.MaxAttempts = cfg.maxAttempts
		}
		rawNew, err := s.encoder.Encode(&rec)
		if err != nil {
			return err
		}
		_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, ikeys.Dead(s.name), 1, str)
			p.ZRem(ctx, ikeys.DeadExpiry(s.name), str)
			if cfg.delay > 0 {
				p.ZAdd(ctx, ikeys.Delayed(s.name), redis.Z{
					Score:  float64(time.Now().Add(cfg.delay).Unix()),
					Member: rawNew,
				})
			} else {
				p.LPush(ctx, ikeys.Pending(s.name), rawNew)
			}
			return nil
		})
		return err
	}
	return ErrEventNotFound
}

// Depths reports how many events sit in each stream state. Used by the
// daemon's scheduled reporter.
func (s *Stream) Depths(ctx context.Context) (map[State]int64, error) {
	k := ikeys.For(s.name)
	pending, err := s.rdb.LLen(ctx, k.Pending).Result()
	if err != nil {
		return nil, err
	}
	active, err := s.rdb.ZCard(ctx, k.Active).Result()
	if err != nil {
		return nil, err
	}
	delayed, err := s.rdb.ZCard(ctx, k.Delayed).Result()
	if err != nil {
		return nil, err
	}
	succeeded, err := s.rdb.ZCard(ctx, k.Succeeded).Result()
	if err != nil {
		return nil, err
	}
	dead, err := s.rdb.LLen(ctx, k.Dead).Result()
	if err != nil {
		return nil, err
	}
	return map[State]int64{
		StatePending:   pending,
		StateActive:    active,
		StateDelayed:   delayed,
		StateSucceeded: succeeded,
		StateDead:      dead,
	}, nil
}
