package nextdue

import (
	"testing"
	"time"
)

func BenchmarkNextOccurrence_Monthly(b *testing.B) {
	current := time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = NextOccurrence(current, PatternMonthly, 1)
	}
}

func BenchmarkJSONEncoder_Decode(b *testing.B) {
	raw := []byte(`{"event_id":"ev-1","event_type":"task.completed","task_id":"t1",
		"task":{"id":"t1","title":"pay rent","due_at":"2024-01-31T10:00:00Z",
		"recurrence":{"is_recurring":true,"pattern":"monthly","interval":1,"occurrence_number":3}}}`)
	enc := &JSONEncoder{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var ev Event
		if err := enc.Decode(raw, &ev); err != nil {
			b.Fatal(err)
		}
	}
}
