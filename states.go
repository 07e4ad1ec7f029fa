package nextdue

// State represents a stream state used to store and inspect events.
// Use the exported constants (StatePending, StateActive, etc.) instead
// of raw strings to avoid typos.
type State string

const (
	// StatePending contains events ready for delivery (LIST).
	StatePending State = "pending"
	// StateActive contains events currently leased by workers (ZSET).
	StateActive State = "active"
	// StateDelayed contains events waiting out a retry backoff (ZSET).
	StateDelayed State = "delayed"
	// StateSucceeded contains processed events kept for inspection (ZSET).
	StateSucceeded State = "succeeded"
	// StateDead contains events that exhausted retries or carried bad data (LIST).
	StateDead State = "dead"
)

// AllStates lists every valid stream state in a stable order.
var AllStates = []State{StatePending, StateActive, StateDelayed, StateSucceeded, StateDead}

// String returns the raw string value of the state.
func (s State) String() string { return string(s) }

// ParseState converts a string into a State, returning an error for unknown values.
func ParseState(s string) (State, error) {
	switch s {
	case string(StatePending):
		return StatePending, nil
	case string(StateActive):
		return StateActive, nil
	case string(StateDelayed):
		return StateDelayed, nil
	case string(StateSucceeded):
		return StateSucceeded, nil
	case string(StateDead):
		return StateDead, nil
	default:
		return "", ErrUnknownState
	}
}
