package nextdue

import (
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Event types carried on the task lifecycle stream.
const (
	// EventTaskCompleted announces that a task was completed; the engine
	// consumes these.
	EventTaskCompleted = "task.completed"
	// EventTaskCreated announces a newly created task; the engine
	// publishes one per generated successor.
	EventTaskCreated = "task.created"
)

// Event is the envelope carried on the task lifecycle stream. Delivery
// metadata (attempt counters, retention) rides alongside these fields
// on the wire but is owned by the stream layer, not by subscribers.
type Event struct {
	// ID uniquely identifies the event and de-duplicates publishes.
	ID string `json:"event_id"`
	// Type is one of the event type constants above.
	Type string `json:"event_type"`
	// TaskID duplicates Task.ID for subscribers that only route.
	TaskID string `json:"task_id,omitempty"`
	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`
	// Task is the full snapshot the event describes.
	Task *Task `json:"task"`
}

// eventSchema constrains inbound envelopes before decoding. Violations
// are bad data: the delivery is dead-lettered rather than retried.
const eventSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["event_id", "event_type", "task"],
  "properties": {
    "event_id": {"type": "string", "minLength": 1},
    "event_type": {"type": "string", "minLength": 1},
    "task_id": {"type": "string"},
    "timestamp": {"type": "string"},
    "task": {
      "type": "object",
      "required": ["id", "title", "due_at"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "title": {"type": "string"},
        "due_at": {"type": "string", "format": "date-time"},
        "recurrence": {
          "type": "object",
          "properties": {
            "is_recurring": {"type": "boolean"},
            "pattern": {"type": "string"},
            "interval": {"type": "integer", "minimum": 1},
            "occurrence_number": {"type": "integer", "minimum": 1}
          }
        }
      }
    }
  }
}`

var (
	eventSchemaOnce     sync.Once
	compiledEventSchema *jsonschema.Schema
)

func loadEventSchema() *jsonschema.Schema {
	eventSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource("event.schema.json", strings.NewReader(eventSchema)); err != nil {
			panic(err)
		}
		compiledEventSchema = compiler.MustCompile("event.schema.json")
	})
	return compiledEventSchema
}

// ValidateEvent checks a raw envelope against the event schema. It
// returns a PolicyError describing the first violation, so callers can
// route malformed events to the dead letter list without retrying.
func ValidateEvent(raw []byte) error {
	var doc any
	enc := &JSONEncoder{}
	if err := enc.Decode(raw, &doc); err != nil {
		return &PolicyError{Reason: "event is not valid JSON", Err: err}
	}
	if err := loadEventSchema().Validate(doc); err != nil {
		return &PolicyError{Reason: "event schema violation", Err: firstSchemaCause(err)}
	}
	return nil
}

// firstSchemaCause drills into a jsonschema ValidationError tree and
// returns the innermost cause, which names the offending field.
func firstSchemaCause(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
