package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/NextDue/nextdue-go/internal/keys"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Rec is the wire representation of an event envelope plus the
// delivery metadata the stream layer maintains across retries.
type Rec struct {
	ID        string          `json:"event_id"`
	Type      string          `json:"event_type"`
	TaskID    string          `json:"task_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Task      json.RawMessage `json:"task,omitempty"`
	// Delivery metadata
	Attempt       int    `json:"attempt,omitempty"`
	MaxAttempts   int    `json:"max_attempts,omitempty"`
	DeadRetention int64  `json:"dead_retention,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	LastErrorAt   int64  `json:"last_error_at,omitempty"`
}

var recPool = sync.Pool{New: func() any { return new(Rec) }}

// Atomic dequeue script: RPOP from pending and ZADD into active with
// the visibility deadline as score.
var dequeueScript = redis.NewScript(
	// language=Lua
	`
	local v = redis.call('RPOP', KEYS[1])
	if not v then return false end
	redis.call('ZADD', KEYS[2], ARGV[1], v)
	return v
	`,
)

// Recycle returns a Rec to the pool to reduce allocations.
func Recycle(r *Rec) {
	if r == nil {
		return
	}
	*r = Rec{}
	recPool.Put(r)
}

// Dequeue atomically moves one event from the pending LIST to the
// active ZSET and returns the decoded record plus its raw JSON.
func Dequeue(ctx context.Context, rdb redis.UniversalClient, k keys.Stream, ttl time.Duration) (*Rec, []byte) {
	expire := time.Now().Add(ttl).Unix()
	res, err := dequeueScript.Run(ctx, rdb, []string{k.Pending, k.Active}, strconv.FormatInt(expire, 10)).Result()
	if err == redis.Nil || res == nil {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	var raw []byte
	switch v := res.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return nil, nil
	}

	r := recPool.Get().(*Rec)
	_ = sonic.Unmarshal(raw, r)
	return r, raw
}

// Ack removes an event from the active ZSET after successful processing.
func Ack(ctx context.Context, rdb redis.UniversalClient, k keys.Stream, raw []byte) error {
	return rdb.ZRem(ctx, k.Active, raw).Err()
}

// FailToDead moves an event from the active ZSET to the dead list,
// recording the failure reason. Retention == 0 drops the event instead
// of retaining it; retention > 0 indexes it for later purging.
func FailToDead(ctx context.Context, rdb redis.UniversalClient, k keys.Stream, r *Rec, raw []byte, reason string) error {
	if reason != "" {
		r.LastError = reason
		r.LastErrorAt = time.Now().UnixMilli()
	}
	newRaw := encodeJSON(r)
	nowMs := time.Now().UnixMilli()
	var addExpiry bool
	var expireMs int64
	if r.DeadRetention > 0 {
		addExpiry = true
		expireMs = nowMs + (r.DeadRetention * 1000)
	}

	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, k.Active, raw)
		if r.DeadRetention != 0 {
			p.LPush(ctx, k.Dead, newRaw)
			if addExpiry {
				p.ZAdd(ctx, k.DeadExpiry, redis.Z{Score: float64(expireMs), Member: newRaw})
			}
		}
		return nil
	})
	return err
}

// RetryAfter re-schedules a failed event into the delayed ZSET with the
// provided backoff delay, persisting the incremented attempt counter
// and last error.
func RetryAfter(ctx context.Context, rdb redis.UniversalClient, k keys.Stream, r *Rec, raw []byte, lastErr string, delay time.Duration) error {
	r.Attempt++
	r.LastError = lastErr
	r.LastErrorAt = time.Now().UnixMilli()
	newRaw := encodeJSON(r)
	due := time.Now().Add(delay).Unix()
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, k.Active, raw)
		p.ZAdd(ctx, k.Delayed, redis.Z{Score: float64(due), Member: newRaw})
		return nil
	})
	return err
}

// TrackSucceeded moves a processed event to the succeeded ZSET with an
// expiration TTL. A non-positive retention skips tracking entirely.
func TrackSucceeded(ctx context.Context, rdb redis.UniversalClient, k keys.Stream, r *Rec, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	newRaw := encodeJSON(r)
	expireMs := time.Now().Add(retention).UnixMilli()
	return rdb.ZAdd(ctx, k.Succeeded, redis.Z{Score: float64(expireMs), Member: newRaw}).Err()
}

// encodeJSON encodes with stdlib json.Marshal; decode stays on sonic.
func encodeJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
