package types

import "time"

// EnvelopeVersion is the schema tag written into every persisted envelope.
const EnvelopeVersion = "1.0"

// DefaultRetention is how long a guest envelope stays valid.
const DefaultRetention = 30 * 24 * time.Hour

// Envelope wraps persisted guest data with a schema version and a write timestamp
// (milliseconds since the epoch).
type Envelope[T any] struct {
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Data      []T    `json:"data"`
}

// NewEnvelope stamps data with the current schema version and now.
func NewEnvelope[T any](data []T, now time.Time) Envelope[T] {
	if data == nil {
		data = []T{}
	}
	return Envelope[T]{Version: EnvelopeVersion, Timestamp: now.UnixMilli(), Data: data}
}

// WrittenAt returns the envelope timestamp as a time.
func (e Envelope[T]) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Expired reports whether the envelope is older than retention at now.
func (e Envelope[T]) Expired(now time.Time, retention time.Duration) bool {
	return now.Sub(e.WrittenAt()) > retention
}

// Usable reports whether the envelope has the current version and is not expired.
// Unusable envelopes are treated exactly like absent ones.
func (e Envelope[T]) Usable(now time.Time, retention time.Duration) bool {
	return e.Version == EnvelopeVersion && e.Timestamp > 0 && !e.Expired(now, retention)
}
