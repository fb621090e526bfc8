package pageflow

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	tests := []struct {
		name     string
		page     string
		user     string
		duration int64
		wantErr  bool
	}{
		{name: "valid", page: "P1", user: "U1", duration: 150},
		{name: "zero duration", page: "P1", user: "U1", duration: 0},
		{name: "empty user allowed", page: "page2", duration: 50},
		{name: "empty name", page: "", user: "U1", duration: 150, wantErr: true},
		{name: "negative duration", page: "P1", user: "U1", duration: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewPageEvent(tt.page, tt.user, ts, tt.duration)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidEvent))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.page, e.Name())
			assert.Equal(t, tt.user, e.User())
			assert.Equal(t, tt.duration, e.Duration())
			assert.True(t, ts.Equal(e.Timestamp()))
			assert.Equal(t, time.UTC, e.Timestamp().Location())
		})
	}
}

func TestPageEventJSON(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	e, err := NewPageEvent("P1", "U2", ts, 420)
	require.NoError(t, err)

	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"P1","user":"U2","timestamp":"2024-05-01T10:00:00.123456789Z","duration":420}`, string(b))

	var decoded PageEvent
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, e.Equal(decoded), "got %s", decoded)
}

func TestPageEventUnmarshalRejectsInvalid(t *testing.T) {
	var e PageEvent
	err := json.Unmarshal([]byte(`{"name":"","user":"U1","timestamp":"2024-05-01T10:00:00Z","duration":5}`), &e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	err = json.Unmarshal([]byte(`{"name":"P1","duration":-3}`), &e)
	require.Error(t, err)
}

func TestRecordWithHeader(t *testing.T) {
	rec := Record{Headers: map[string]string{"a": "1"}}
	updated := rec.WithHeader("b", "2")

	assert.Equal(t, "2", updated.Header("b"))
	assert.Equal(t, "1", updated.Header("a"))
	assert.Empty(t, rec.Header("b"))
	assert.Empty(t, Record{}.Header("missing"))
}
