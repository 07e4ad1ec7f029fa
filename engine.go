package nextdue

import (
	"context"
	"errors"
	"sync"
	"time"

	rtm "github.com/NextDue/nextdue-go/internal/runtime"
	"github.com/redis/go-redis/v9"
)

// EngineConfig defines the configuration for a recurrence engine.
type EngineConfig struct {
	// ConsumeStream is the stream of completion events the engine drains.
	ConsumeStream string
	// PublishStream is the stream creation events are announced on.
	PublishStream string
	// Concurrency is the number of worker goroutines.
	Concurrency int
	// VisibilityTTL is the lease duration for a delivered event. If a
	// worker crashes mid-pipeline, the event is reclaimed after the TTL.
	VisibilityTTL time.Duration
	// RunTimeout bounds a single Evaluate-Generate-Persist-Publish run.
	RunTimeout time.Duration
	// Backoff governs transient-failure retries, both the in-process
	// publish retry and the delayed redelivery schedule.
	Backoff Backoff
	// SucceededRetention is how long processed completion events are
	// kept for inspection.
	SucceededRetention time.Duration
	// Logger is the logger used for engine events.
	Logger Logger
}

// Engine reacts to task completion events: it evaluates the recurrence
// policy, builds the successor occurrence, persists it through the
// injected store and publishes a creation event. Each delivered event
// runs its pipeline sequentially; different events are processed
// concurrently by the worker pool.
type Engine struct {
	rt      *rtm.Runtime
	store   TaskStore
	out     *Stream
	encoder Encoder
	backoff Backoff
	log     Logger
	mu      sync.Mutex
	started bool
	now     func() time.Time
}

const (
	defaultConsumeStream = "task-completions"
	defaultPublishStream = "task-events"
)

// NewEngine creates a recurrence engine consuming completion events
// from Redis and persisting successors via store.
func NewEngine(rdb redis.UniversalClient, store TaskStore, cfg EngineConfig) *Engine {
	if cfg.ConsumeStream == "" {
		cfg.ConsumeStream = defaultConsumeStream
	}
	if cfg.PublishStream == "" {
		cfg.PublishStream = defaultPublishStream
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.VisibilityTTL <= 0 {
		cfg.VisibilityTTL = time.Minute
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	l := cfg.Logger
	if l == nil {
		l = NewFmtLogger()
	}

	e := &Engine{
		store:   store,
		out:     NewStream(rdb, cfg.PublishStream),
		encoder: &JSONEncoder{},
		backoff: cfg.Backoff,
		log:     l,
		now:     time.Now,
	}
	rtc := rtm.Config{
		Stream:             cfg.ConsumeStream,
		Concurrency:        cfg.Concurrency,
		VisibilityTTL:      cfg.VisibilityTTL,
		RunTimeout:         cfg.RunTimeout,
		MaxAttempts:        cfg.Backoff.MaxAttempts,
		RetryDelay:         cfg.Backoff.Delay,
		Permanent:          IsPermanent,
		SucceededRetention: cfg.SucceededRetention,
		Logger:             rtLogger{Logger: l},
	}
	e.rt = rtm.New(rdb, rtc, e.process)
	return e
}

// Start launches the engine workers and background maintenance routines.
// It is idempotent and non-blocking.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.log.Warnf("engine already started; ignoring Start()")
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()
	e.log.Infof("starting engine: publish=%s", e.out.Name())
	e.rt.Start()
}

// Stop gracefully shuts down the engine, waiting for workers to finish
// their current pipelines.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.log.Warnf("engine not started; ignoring Stop()")
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()
	e.log.Infof("stopping engine")
	e.rt.Stop()
}

// process runs the full pipeline for one raw completion event. The
// error it returns determines the event's fate: nil acknowledges it,
// a permanent error dead-letters it, anything else re-schedules it
// with backoff.
func (e *Engine) process(ctx context.Context, raw []byte) error {
	if err := ValidateEvent(raw); err != nil {
		return err
	}
	var ev Event
	if err := e.encoder.Decode(raw, &ev); err != nil {
		return &PolicyError{Reason: "malformed event", Err: err}
	}
	if ev.Type != EventTaskCompleted {
		e.log.Debugf("skipping non-completion event: id=%s type=%s", ev.ID, ev.Type)
		return nil
	}

	decision, err := Evaluate(ev.Task)
	if err != nil {
		return err
	}
	if !decision.Generate {
		e.log.Debugf("no successor for task %s: %s", ev.Task.ID, decision.Reason)
		return nil
	}

	successor := BuildSuccessor(ev.Task, decision.NextDue, e.now().UTC())
	if err := e.store.Save(ctx, successor); err != nil {
		if !errors.Is(err, ErrDuplicateSuccessor) {
			return &StoreError{Err: err}
		}
		// Redelivered event: the successor row exists, only the
		// announcement may still be missing.
		e.log.Infof("successor %s already persisted, re-publishing", successor.ID)
	} else {
		e.log.Infof("generated occurrence %d of series %s: id=%s due=%s",
			successor.Recurrence.Occurrence, successor.Recurrence.OriginalTaskID,
			successor.ID, successor.DueAt.Format(time.RFC3339))
	}

	return e.publishCreated(ctx, successor)
}

// publishCreated announces the successor, retrying in-process with the
// configured backoff. The successor is already persisted at this point,
// so only the publish step repeats; the event ID is derived from the
// successor identity, making every republish idempotent.
func (e *Engine) publishCreated(ctx context.Context, successor *Task) error {
	var lastErr error
	for attempt := 1; attempt <= e.backoff.MaxAttempts; attempt++ {
		err := e.out.PublishCreated(ctx, successor, EventID(successor.ID))
		if err == nil || errors.Is(err, ErrDuplicateEvent) {
			return nil
		}
		lastErr = err
		e.log.Warnf("publish attempt %d failed for successor %s: %v", attempt, successor.ID, err)
		if attempt == e.backoff.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return &PublishError{Err: ctx.Err()}
		case <-time.After(e.backoff.Delay(attempt)):
		}
	}
	return &PublishError{Err: lastErr}
}

// rtLogger adapts the public Logger to the internal runtime logger interface.
type rtLogger struct{ Logger }
