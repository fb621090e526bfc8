package pageflow

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// EncodeEvent serializes a PageEvent to its JSON wire form.
func EncodeEvent(e PageEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page event: %w", err)
	}

	return b, nil
}

// DecodeEvent parses and validates a JSON page event.
func DecodeEvent(b []byte) (PageEvent, error) {
	var e PageEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return PageEvent{}, fmt.Errorf("failed to decode page event: %w", err)
	}

	return e, nil
}

// EncodeDuration writes v as an 8-byte big-endian integer, the layout used by
// Kafka's LongSerializer.
func EncodeDuration(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeDuration reads an 8-byte big-endian integer.
func DecodeDuration(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("failed to decode duration: expected 8 bytes, got %d", len(b))
	}

	return int64(binary.BigEndian.Uint64(b)), nil
}

// WindowCount is the aggregate emitted for a page within one tumbling window.
type WindowCount struct {
	Name          string    `json:"name"`
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
	Count         int64     `json:"count"`
	TotalDuration int64     `json:"totalDuration"`
}

func EncodeWindowCount(c WindowCount) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode window count: %w", err)
	}

	return b, nil
}

func DecodeWindowCount(b []byte) (WindowCount, error) {
	var c WindowCount
	if err := json.Unmarshal(b, &c); err != nil {
		return WindowCount{}, fmt.Errorf("failed to decode window count: %w", err)
	}

	return c, nil
}
