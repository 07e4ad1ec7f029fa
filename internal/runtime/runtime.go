package runtime

import (
	"context"
	"strconv"
	"sync"
	"time"

	ikeys "github.com/NextDue/nextdue-go/internal/keys"
	"github.com/NextDue/nextdue-go/internal/stream"
	"github.com/redis/go-redis/v9"
)

// Logger is a minimal logging interface used internally by the runtime.
// It mirrors the public logger in the root package to avoid an import cycle.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// Config drives the consumer runtime for one event stream.
type Config struct {
	// Stream is the name of the stream to consume.
	Stream string
	// Concurrency is the number of worker goroutines.
	Concurrency int
	// VisibilityTTL is how long a dequeued event stays leased; events
	// held past the TTL are reclaimed into pending for redelivery.
	VisibilityTTL time.Duration
	// RunTimeout bounds one pipeline run; an expired run counts as a
	// transient failure and is retried.
	RunTimeout time.Duration
	// MaxAttempts is the delivery ceiling applied when an event record
	// does not carry its own.
	MaxAttempts int
	// RetryDelay returns the backoff before the given 1-based attempt.
	RetryDelay func(attempt int) time.Duration
	// Permanent classifies executor errors that must not be retried.
	Permanent func(err error) bool
	// SucceededRetention is how long processed events are kept for
	// inspection. Zero disables tracking.
	SucceededRetention time.Duration
	Logger             Logger
}

// Executor processes one raw event envelope.
type Executor func(ctx context.Context, raw []byte) error

// Runtime manages the worker pool and the background maintenance
// goroutines (delayed scheduler, visibility reclaimer, dead cleaner)
// for a single stream.
type Runtime struct {
	rdb     redis.UniversalClient
	cfg     Config
	exec    Executor
	keys    ikeys.Stream
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	log     Logger
}

// scheduleOneScript atomically moves one due item from delayed ZSET to pending LIST.
// It returns the moved member on success, or false/nil if none moved.
var scheduleOneScript = redis.NewScript(`
local dkey = KEYS[1]
local pkey = KEYS[2]
local now  = ARGV[1]
local items = redis.call('ZRANGEBYSCORE', dkey, '-inf', now, 'LIMIT', 0, 1)
if #items == 0 then return false end
local m = items[1]
local rem = redis.call('ZREM', dkey, m)
if rem == 1 then
  redis.call('LPUSH', pkey, m)
  return m
end
return false
`)

// reclaimOneScript atomically reclaims one expired active item back to pending.
var reclaimOneScript = redis.NewScript(`
local akey = KEYS[1]
local pkey = KEYS[2]
local now  = ARGV[1]
local items = redis.call('ZRANGEBYSCORE', akey, '-inf', now, 'LIMIT', 0, 1)
if #items == 0 then return false end
local m = items[1]
local rem = redis.call('ZREM', akey, m)
if rem == 1 then
  redis.call('LPUSH', pkey, m)
  return m
end
return false
`)

// New creates a runtime that consumes the configured stream with the
// given executor.
func New(rdb redis.UniversalClient, cfg Config, exec Executor) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	lg := cfg.Logger
	if lg == nil {
		lg = noopLogger{}
	}
	return &Runtime{
		rdb:    rdb,
		cfg:    cfg,
		exec:   exec,
		keys:   ikeys.For(cfg.Stream),
		ctx:    ctx,
		cancel: cancel,
		log:    lg,
	}
}

// Start launches workers and background maintenance goroutines.
func (rt *Runtime) Start() {
	rt.mu.Lock()
	if rt.started {
		rt.log.Warnf("runtime already started; ignoring Start()")
		rt.mu.Unlock()
		return
	}
	rt.started = true
	rt.mu.Unlock()
	rt.log.Infof("runtime starting: stream=%s concurrency=%d", rt.cfg.Stream, rt.cfg.Concurrency)

	for i := 0; i < rt.cfg.Concurrency; i++ {
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			rt.workerLoop()
		}()
	}

	// Delayed scheduler: move due events from delayed to pending atomically.
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-rt.ctx.Done():
				return
			case <-ticker.C:
				now := strconv.FormatInt(time.Now().Unix(), 10)
				// drain up to N per tick to avoid long loops
				for i := 0; i < 256; i++ {
					res, err := scheduleOneScript.Run(rt.ctx, rt.rdb, []string{rt.keys.Delayed, rt.keys.Pending}, now).Result()
					if err == redis.Nil || res == nil || res == false {
						break
					}
					if err != nil {
						rt.log.Warnf("scheduler: script failed stream=%s err=%v", rt.cfg.Stream, err)
						break
					}
				}
			}
		}
	}()

	// Visibility reclaimer: move expired active events back to pending.
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-rt.ctx.Done():
				return
			case <-ticker.C:
				now := strconv.FormatInt(time.Now().Unix(), 10)
				for i := 0; i < 256; i++ {
					res, err := reclaimOneScript.Run(rt.ctx, rt.rdb, []string{rt.keys.Active, rt.keys.Pending}, now).Result()
					if err == redis.Nil || res == nil || res == false {
						break
					}
					if err != nil {
						rt.log.Warnf("reclaimer: script failed stream=%s err=%v", rt.cfg.Stream, err)
						break
					}
				}
			}
		}
	}()

	// Cleaners: purge expired entries from succeeded ZSET and dead list.
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rt.ctx.Done():
				return
			case <-ticker.C:
				nowMs := time.Now().UnixMilli()
				if err := rt.rdb.ZRemRangeByScore(rt.ctx, rt.keys.Succeeded, "0", strconv.FormatInt(nowMs, 10)).Err(); err != nil {
					rt.log.Warnf("cleaner: succeeded sweep failed stream=%s err=%v", rt.cfg.Stream, err)
				}
				rt.purgeDead(strconv.FormatInt(nowMs, 10))
			}
		}
	}()
}

// purgeDead removes dead-list members whose retention expired, in small
// batches to keep Redis calls short.
func (rt *Runtime) purgeDead(nowMs string) {
	members, err := rt.rdb.ZRangeByScore(rt.ctx, rt.keys.DeadExpiry, &redis.ZRangeBy{Min: "0", Max: nowMs, Offset: 0, Count: 256}).Result()
	if err != nil && err != redis.Nil {
		rt.log.Warnf("dead-cleaner: range failed stream=%s err=%v", rt.cfg.Stream, err)
		return
	}
	if len(members) == 0 {
		return
	}
	_, pipErr := rt.rdb.TxPipelined(rt.ctx, func(p redis.Pipeliner) error {
		for _, m := range members {
			p.LRem(rt.ctx, rt.keys.Dead, 1, m)
			p.ZRem(rt.ctx, rt.keys.DeadExpiry, m)
		}
		return nil
	})
	if pipErr != nil {
		rt.log.Warnf("dead-cleaner: purge failed stream=%s err=%v", rt.cfg.Stream, pipErr)
	}
}

// Stop cancels the internal context and waits for all goroutines to exit.
func (rt *Runtime) Stop() {
	rt.mu.Lock()
	if !rt.started {
		rt.log.Warnf("runtime not started; ignoring Stop()")
		rt.mu.Unlock()
		return
	}
	rt.started = false
	rt.mu.Unlock()
	rt.log.Infof("runtime stopping")

	rt.cancel()
	rt.wg.Wait()
}

func (rt *Runtime) workerLoop() {
	for {
		select {
		case <-rt.ctx.Done():
			return
		default:
		}

		rec, raw := stream.Dequeue(rt.ctx, rt.rdb, rt.keys, rt.cfg.VisibilityTTL)
		if rec == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		rt.handle(rec, raw)
	}
}

// handle runs the executor for one delivery and applies the outcome:
// ack on success, dead on permanent failure or exhausted attempts,
// delayed retry otherwise. The inbound event leaves the active ZSET
// only after that outcome is recorded, never before.
func (rt *Runtime) handle(rec *stream.Rec, raw []byte) {
	defer stream.Recycle(rec)

	runCtx := rt.ctx
	cancel := func() {}
	if rt.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(rt.ctx, rt.cfg.RunTimeout)
	}
	err := rt.exec(runCtx, raw)
	cancel()

	if err != nil {
		if rt.cfg.Permanent != nil && rt.cfg.Permanent(err) {
			if e := stream.FailToDead(rt.ctx, rt.rdb, rt.keys, rec, raw, err.Error()); e != nil {
				rt.log.Errorf("deadletter failed: id=%s type=%s stream=%s err=%v", rec.ID, rec.Type, rt.cfg.Stream, e)
			} else {
				rt.log.Warnf("permanent failure, dead-lettered: id=%s type=%s stream=%s err=%v", rec.ID, rec.Type, rt.cfg.Stream, err)
			}
			return
		}
		max := rec.MaxAttempts
		if max <= 0 {
			max = rt.cfg.MaxAttempts
		}
		if rec.Attempt >= max {
			if e := stream.FailToDead(rt.ctx, rt.rdb, rt.keys, rec, raw, err.Error()); e != nil {
				rt.log.Errorf("dead transition failed: id=%s type=%s stream=%s err=%v", rec.ID, rec.Type, rt.cfg.Stream, e)
			} else {
				rt.log.Warnf("attempts exhausted (%d), dead-lettered: id=%s type=%s stream=%s err=%v", rec.Attempt, rec.ID, rec.Type, rt.cfg.Stream, err)
			}
			return
		}
		delay := time.Second
		if rt.cfg.RetryDelay != nil {
			delay = rt.cfg.RetryDelay(rec.Attempt + 1)
		}
		if e := stream.RetryAfter(rt.ctx, rt.rdb, rt.keys, rec, raw, err.Error(), delay); e != nil {
			rt.log.Errorf("retry transition failed: id=%s type=%s stream=%s err=%v", rec.ID, rec.Type, rt.cfg.Stream, e)
		} else {
			rt.log.Warnf("transient failure, retrying in %s: id=%s type=%s stream=%s err=%v", delay, rec.ID, rec.Type, rt.cfg.Stream, err)
		}
		return
	}

	if e := stream.Ack(rt.ctx, rt.rdb, rt.keys, raw); e != nil {
		rt.log.Errorf("ack failed: id=%s type=%s stream=%s err=%v", rec.ID, rec.Type, rt.cfg.Stream, e)
	}
	if e := stream.TrackSucceeded(rt.ctx, rt.rdb, rt.keys, rec, rt.cfg.SucceededRetention); e != nil {
		rt.log.Warnf("track succeeded failed: id=%s stream=%s err=%v", rec.ID, rt.cfg.Stream, e)
	} else {
		rt.log.Debugf("processed: id=%s type=%s stream=%s", rec.ID, rec.Type, rt.cfg.Stream)
	}
	// Release the de-dup lock on success so IDs do not accumulate forever.
	if err := rt.rdb.SRem(rt.ctx, rt.keys.Unique, rec.ID).Err(); err != nil {
		rt.log.Warnf("unique unlock failed: id=%s stream=%s err=%v", rec.ID, rt.cfg.Stream, err)
	}
}
