package nextdue

import (
	"context"
	"testing"
	"time"

	ikeys "github.com/NextDue/nextdue-go/internal/keys"
	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	cleanup := func() {
		_ = rdb.Close()
		s.Close()
	}
	return rdb, cleanup
}

func sampleTask(id string) *Task {
	return &Task{
		ID:     id,
		Title:  "take out trash",
		DueAt:  date(2024, time.March, 4, 18, 0),
		Status: StatusCompleted,
		Recurrence: &Recurrence{
			IsRecurring: true,
			Pattern:     "weekly",
			Interval:    1,
			Occurrence:  1,
		},
	}
}

func TestStream_Publish_Basics(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	s := NewStream(rdb, "s-pub")

	// pending
	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t1")))
	nPending, _ := rdb.LLen(ctx, ikeys.Pending("s-pub")).Result()
	require.Equal(t, int64(1), nPending)

	// delayed
	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t2"), Delay(time.Hour)))
	nDelayed, _ := rdb.ZCard(ctx, ikeys.Delayed("s-pub")).Result()
	require.Equal(t, int64(1), nDelayed)

	// duplicate id rejection
	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t3"), EventID("dup-one")))
	err := s.PublishCompleted(ctx, sampleTask("t3"), EventID("dup-one"))
	require.ErrorIs(t, err, ErrDuplicateEvent)
}

func TestStream_PublishedEnvelopeShape(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	s := NewStream(rdb, "s-env")

	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t1"), EventID("ev-1")))
	strs, err := rdb.LRange(ctx, ikeys.Pending("s-env"), 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, strs, 1)

	// Published envelopes must pass our own inbound validation.
	require.NoError(t, ValidateEvent([]byte(strs[0])))

	var ev Event
	require.NoError(t, (&JSONEncoder{}).Decode([]byte(strs[0]), &ev))
	require.Equal(t, "ev-1", ev.ID)
	require.Equal(t, EventTaskCompleted, ev.Type)
	require.Equal(t, "t1", ev.TaskID)
	require.Equal(t, "t1", ev.Task.ID)
}

func TestStream_ListEvents(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	s := NewStream(rdb, "s-list")

	// empty stream
	evs, err := s.ListEvents(ctx, StatePending, nil)
	require.NoError(t, err)
	require.Len(t, evs, 0)

	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t1")))
	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t2"), Delay(time.Minute)))

	evs, err = s.ListEvents(ctx, StatePending, nil)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	evs, err = s.ListEvents(ctx, StateDelayed, nil)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	// filter by task
	evs, err = s.ListEvents(ctx, StatePending, func(ev *Event) bool { return ev.TaskID == "nope" })
	require.NoError(t, err)
	require.Len(t, evs, 0)

	_, err = s.ListEvents(ctx, State("bogus"), nil)
	require.ErrorIs(t, err, ErrUnknownState)
}

func TestStream_RetryDead(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	name := "s-retry"
	s := NewStream(rdb, name)

	// Seed a dead event the way the stream layer writes them.
	raw := `{"event_id":"ev-dead","event_type":"task.completed","attempt":5,"max_attempts":5,
	         "last_error":"boom","last_error_at":123,
	         "task":{"id":"t","title":"x","due_at":"2024-01-15T09:00:00Z"}}`
	require.NoError(t, rdb.LPush(ctx, ikeys.Dead(name), raw).Err())

	require.NoError(t, s.RetryDead(ctx, "ev-dead"))

	nDead, _ := rdb.LLen(ctx, ikeys.Dead(name)).Result()
	require.Equal(t, int64(0), nDead)
	evs, err := s.ListEvents(ctx, StatePending, nil)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, "ev-dead", evs[0].ID)

	// Attempt counters were reset on the requeued record.
	strs, _ := rdb.LRange(ctx, ikeys.Pending(name), 0, -1).Result()
	require.NotContains(t, strs[0], "last_error")

	// Unknown ID
	require.ErrorIs(t, s.RetryDead(ctx, "missing"), ErrEventNotFound)
}

func TestStream_RetryDead_WithDelay(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	name := "s-retry-delay"
	s := NewStream(rdb, name)

	raw := `{"event_id":"ev-1","event_type":"task.completed","task":{"id":"t","title":"x","due_at":"2024-01-15T09:00:00Z"}}`
	require.NoError(t, rdb.LPush(ctx, ikeys.Dead(name), raw).Err())

	require.NoError(t, s.RetryDead(ctx, "ev-1", Delay(time.Hour)))
	nDelayed, _ := rdb.ZCard(ctx, ikeys.Delayed(name)).Result()
	require.Equal(t, int64(1), nDelayed)
}

func TestStream_Depths(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	s := NewStream(rdb, "s-depths")

	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t1")))
	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t2")))
	require.NoError(t, s.PublishCompleted(ctx, sampleTask("t3"), Delay(time.Hour)))

	depths, err := s.Depths(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), depths[StatePending])
	require.Equal(t, int64(1), depths[StateDelayed])
	require.Equal(t, int64(0), depths[StateDead])
}
