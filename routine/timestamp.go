package routine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is the canonical in-memory representation of a date value.
// Upstream documents carry dates in two shapes: an RFC 3339 string or an
// object with epoch seconds (optionally nanoseconds). Both unmarshal into
// Timestamp, and Timestamp always marshals back to an RFC 3339 string, so
// a record round-tripped through the cache is indistinguishable from a
// freshly fetched one.
type Timestamp struct {
	Seconds int64
	Nanos   int64
}

// At returns the Timestamp for the given time.
func At(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int64(t.Nanosecond())}
}

// FromSeconds returns the Timestamp for the given epoch seconds.
func FromSeconds(s int64) Timestamp {
	return Timestamp{Seconds: s}
}

// Time returns the instant as a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, t.Nanos).UTC()
}

// IsZero reports whether the timestamp is the zero value.
func (t Timestamp) IsZero() bool {
	return t.Seconds == 0 && t.Nanos == 0
}

func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339)
}

// MarshalJSON encodes the timestamp as an RFC 3339 string in UTC.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time().Format(time.RFC3339Nano))
}

// secondsShape is the raw object form some upstream documents use.
type secondsShape struct {
	Seconds     *int64 `json:"seconds"`
	Nanoseconds int64  `json:"nanoseconds"`
}

// UnmarshalJSON decodes an RFC 3339 string, a {"seconds": N} object, or
// null. Anything else is an error: date shapes are normalized here at the
// boundary, never deeper in the system.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("routine: invalid timestamp string %q: %w", s, err)
		}
		*t = At(parsed)
		return nil
	}
	var obj secondsShape
	if err := json.Unmarshal(data, &obj); err == nil && obj.Seconds != nil {
		*t = Timestamp{Seconds: *obj.Seconds, Nanos: obj.Nanoseconds}
		return nil
	}
	return fmt.Errorf("routine: unsupported timestamp shape: %s", string(data))
}
