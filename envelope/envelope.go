// Package envelope wraps cached payloads in a version-tagged wrapper so
// stale schema generations are discarded instead of partially trusted.
package envelope

import (
	"bytes"
	"encoding/json"
	"time"
)

// SchemaVersion tags every envelope written by this build. Bump it when a
// cached record's shape changes; older envelopes then read as misses and
// are deleted on the next access.
const SchemaVersion = "v1.2"

// Envelope is the unit stored under every cache key. The persisted JSON
// shape is {"data": <T>, "timestamp": <epoch millis>, "version": "<string>"}.
type Envelope[T any] struct {
	Data      T      `json:"data"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`

	hasData bool
}

// Wrap stamps data with the current time and schema version.
func Wrap[T any](now time.Time, data T) Envelope[T] {
	return Envelope[T]{
		Data:      data,
		Timestamp: now.UnixMilli(),
		Version:   SchemaVersion,
		hasData:   true,
	}
}

// UnmarshalJSON decodes the persisted shape and records whether the data
// field was actually present. A payload with no data field must not
// fabricate a zero value that Valid would then vouch for.
func (e *Envelope[T]) UnmarshalJSON(buf []byte) error {
	var raw struct {
		Data      json.RawMessage `json:"data"`
		Timestamp int64           `json:"timestamp"`
		Version   string          `json:"version"`
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}
	e.Timestamp = raw.Timestamp
	e.Version = raw.Version
	e.hasData = len(raw.Data) > 0 && !bytes.Equal(raw.Data, []byte("null"))
	if !e.hasData {
		var zero T
		e.Data = zero
		return nil
	}
	return json.Unmarshal(raw.Data, &e.Data)
}

// Valid reports whether the envelope was written by the current schema
// generation and carries a payload. An envelope failing any of these
// checks must be treated exactly like a miss, never partially trusted.
func (e Envelope[T]) Valid() bool {
	return e.hasData && e.Version == SchemaVersion && e.Timestamp > 0
}

// WrittenAt returns the time the envelope was created.
func (e Envelope[T]) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Age returns how long ago the envelope was written.
func (e Envelope[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt())
}
