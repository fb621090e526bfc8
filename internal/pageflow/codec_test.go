package pageflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

func TestEventCodecRoundTrip(t *testing.T) {
	e, err := NewPageEvent("P2", "U1", time.Now(), 9999)
	require.NoError(t, err)

	b, err := EncodeEvent(e)
	require.NoError(t, err)

	decoded, err := DecodeEvent(b)
	require.NoError(t, err)
	assert.True(t, e.Equal(decoded))
}

func TestEncodeEventRejectsZeroValue(t *testing.T) {
	_, err := EncodeEvent(PageEvent{})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDecodeEventMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"name": 12}`, `[]`} {
		_, err := DecodeEvent([]byte(raw))
		assert.Error(t, err, "input %q", raw)
	}
}

func TestDurationCodec(t *testing.T) {
	for _, v := range []int64{0, 101, 150, 10009, -1} {
		b := EncodeDuration(v)
		require.Len(t, b, 8)

		got, err := DecodeDuration(b)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 150}, EncodeDuration(150))

	_, err := DecodeDuration([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestWindowCountCodec(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := WindowCount{Name: "P1", WindowStart: start, WindowEnd: start.Add(time.Minute), Count: 3, TotalDuration: 900}

	b, err := EncodeWindowCount(c)
	require.NoError(t, err)

	got, err := DecodeWindowCount(b)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Count, got.Count)
	assert.Equal(t, c.TotalDuration, got.TotalDuration)
	assert.True(t, c.WindowStart.Equal(got.WindowStart))
	assert.True(t, c.WindowEnd.Equal(got.WindowEnd))
}

func TestHeaderCarrierPropagation(t *testing.T) {
	carrier := HeaderCarrier{}
	carrier.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	assert.Equal(t, []string{"traceparent"}, carrier.Keys())

	var prop propagation.TraceContext
	assert.Contains(t, prop.Fields(), "traceparent")
	assert.NotEmpty(t, carrier.Get("traceparent"))
	assert.Empty(t, carrier.Get("missing"))
}
