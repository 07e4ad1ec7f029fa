// Package keys centralizes Redis key construction for event streams.
// It is kept in internal to avoid leaking key formats to public API.
// The hash tag around the stream name keeps all keys of one stream on
// the same cluster slot.
package keys

func Pending(stream string) string   { return "nextdue:{" + stream + "}:pending" }
func Active(stream string) string    { return "nextdue:{" + stream + "}:active" }
func Delayed(stream string) string   { return "nextdue:{" + stream + "}:delayed" }
func Dead(stream string) string      { return "nextdue:{" + stream + "}:dead" }
func Succeeded(stream string) string { return "nextdue:{" + stream + "}:succeeded" }

// Unique returns the per-stream Set key that tracks published event IDs
// for de-duplication.
func Unique(stream string) string { return "nextdue:{" + stream + "}:unique" }

// DeadExpiry is a ZSET index that tracks when dead-list members should
// be purged. Members are the raw event JSON; scores are absolute
// expiration timestamps in ms.
func DeadExpiry(stream string) string { return "nextdue:{" + stream + "}:dead_expiry" }

// Stream holds all precomputed keys for a stream name to avoid repeated
// concatenations.
type Stream struct {
	Pending    string
	Active     string
	Delayed    string
	Dead       string
	Succeeded  string
	Unique     string
	DeadExpiry string
}

// For returns the set of precomputed keys for the provided stream.
func For(stream string) Stream {
	prefix := "nextdue:{" + stream + "}:"
	return Stream{
		Pending:    prefix + "pending",
		Active:     prefix + "active",
		Delayed:    prefix + "delayed",
		Dead:       prefix + "dead",
		Succeeded:  prefix + "succeeded",
		Unique:     prefix + "unique",
		DeadExpiry: prefix + "dead_expiry",
	}
}
