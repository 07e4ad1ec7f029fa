package nextdue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validCompletedEvent(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(Event{
		ID:        "ev-1",
		Type:      EventTaskCompleted,
		TaskID:    "task-1",
		Timestamp: time.Now().UTC(),
		Task: &Task{
			ID:     "task-1",
			Title:  "pay rent",
			DueAt:  date(2024, time.January, 31, 10, 0),
			Status: StatusCompleted,
			Recurrence: &Recurrence{
				IsRecurring: true,
				Pattern:     "monthly",
				Interval:    1,
				Occurrence:  1,
			},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestValidateEvent_OK(t *testing.T) {
	require.NoError(t, ValidateEvent(validCompletedEvent(t)))
}

func TestValidateEvent_NotJSON(t *testing.T) {
	err := ValidateEvent([]byte("{not json"))
	var pe *PolicyError
	require.True(t, errors.As(err, &pe))
	require.True(t, IsPermanent(err))
}

func TestValidateEvent_SchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing event_id", `{"event_type":"task.completed","task":{"id":"t","title":"x","due_at":"2024-01-15T09:00:00Z"}}`},
		{"missing task", `{"event_id":"e","event_type":"task.completed"}`},
		{"task missing due_at", `{"event_id":"e","event_type":"task.completed","task":{"id":"t","title":"x"}}`},
		{"interval below one", `{"event_id":"e","event_type":"task.completed","task":{"id":"t","title":"x","due_at":"2024-01-15T09:00:00Z","recurrence":{"is_recurring":true,"pattern":"daily","interval":0}}}`},
		{"due_at not a timestamp", `{"event_id":"e","event_type":"task.completed","task":{"id":"t","title":"x","due_at":"tomorrow"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEvent([]byte(tc.raw))
			var pe *PolicyError
			require.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}

func TestValidateEvent_AllowsDeliveryMetadata(t *testing.T) {
	// Attempt counters ride on the same JSON document; the schema must
	// not reject them.
	raw := `{"event_id":"e","event_type":"task.completed","attempt":2,"max_attempts":5,
	         "task":{"id":"t","title":"x","due_at":"2024-01-15T09:00:00Z"}}`
	require.NoError(t, ValidateEvent([]byte(raw)))
}

func TestEvent_RoundTrip(t *testing.T) {
	raw := validCompletedEvent(t)
	var ev Event
	enc := &JSONEncoder{}
	require.NoError(t, enc.Decode(raw, &ev))
	require.Equal(t, "ev-1", ev.ID)
	require.Equal(t, EventTaskCompleted, ev.Type)
	require.NotNil(t, ev.Task)
	require.Equal(t, "monthly", ev.Task.Recurrence.Pattern)
}
