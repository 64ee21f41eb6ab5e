package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := Wrap(now, []string{"a", "b"})
	assert.Equal(t, SchemaVersion, env.Version)
	assert.Equal(t, now.UnixMilli(), env.Timestamp)
	assert.True(t, env.Valid())
	assert.Equal(t, now, env.WrittenAt())
	assert.Equal(t, 5*time.Minute, env.Age(now.Add(5*time.Minute)))
}

func TestPersistedShape(t *testing.T) {
	env := Wrap(time.UnixMilli(1771057815000), "hello")
	buf, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"hello","timestamp":1771057815000,"version":"`+SchemaVersion+`"}`, string(buf))
}

func TestRoundTripStaysValid(t *testing.T) {
	buf, err := json.Marshal(Wrap(time.UnixMilli(1771057815000), 42))
	require.NoError(t, err)
	var env Envelope[int]
	require.NoError(t, json.Unmarshal(buf, &env))
	assert.True(t, env.Valid())
	assert.Equal(t, 42, env.Data)
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"current version", `{"data":1,"timestamp":100,"version":"` + SchemaVersion + `"}`, true},
		{"old version", `{"data":1,"timestamp":100,"version":"v0.9"}`, false},
		{"missing version", `{"data":1,"timestamp":100}`, false},
		{"missing timestamp", `{"data":1,"version":"` + SchemaVersion + `"}`, false},
		{"zero timestamp", `{"data":1,"timestamp":0,"version":"` + SchemaVersion + `"}`, false},
		{"missing data", `{"timestamp":100,"version":"` + SchemaVersion + `"}`, false},
		{"null data", `{"data":null,"timestamp":100,"version":"` + SchemaVersion + `"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope[int]
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &env))
			assert.Equal(t, tt.want, env.Valid())
		})
	}
}
