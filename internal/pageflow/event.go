package pageflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is returned when a PageEvent violates its invariants.
var ErrInvalidEvent = errors.New("invalid page event")

// PageEvent records a single visit to a page by a user.
// Values are immutable once constructed; use NewPageEvent or DecodeEvent to obtain one.
type PageEvent struct {
	name      string
	user      string
	timestamp time.Time
	duration  int64
}

// NewPageEvent validates its arguments and returns the event.
// The timestamp is normalized to UTC.
func NewPageEvent(name, user string, timestamp time.Time, duration int64) (PageEvent, error) {
	e := PageEvent{
		name:      name,
		user:      user,
		timestamp: timestamp.UTC(),
		duration:  duration,
	}

	if err := e.Validate(); err != nil {
		return PageEvent{}, err
	}

	return e, nil
}

// Name identifies the visited page.
func (e PageEvent) Name() string { return e.name }

// User identifies the visitor.
func (e PageEvent) User() string { return e.user }

// Timestamp is when the event was created.
func (e PageEvent) Timestamp() time.Time { return e.timestamp }

// Duration is the time spent on the page.
func (e PageEvent) Duration() int64 { return e.duration }

// Validate checks that name is set and duration is non-negative.
func (e PageEvent) Validate() error {
	if e.name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidEvent)
	}
	if e.duration < 0 {
		return fmt.Errorf("%w: duration %d must not be negative", ErrInvalidEvent, e.duration)
	}

	return nil
}

// Equal reports whether both events carry the same values.
func (e PageEvent) Equal(o PageEvent) bool {
	return e.name == o.name &&
		e.user == o.user &&
		e.duration == o.duration &&
		e.timestamp.Equal(o.timestamp)
}

func (e PageEvent) String() string {
	return fmt.Sprintf("PageEvent{name=%s, user=%s, timestamp=%s, duration=%d}",
		e.name, e.user, e.timestamp.Format(time.RFC3339Nano), e.duration)
}

type pageEventJSON struct {
	Name      string    `json:"name"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Duration  int64     `json:"duration"`
}

func (e PageEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(pageEventJSON{
		Name:      e.name,
		User:      e.user,
		Timestamp: e.timestamp,
		Duration:  e.duration,
	})
}

func (e *PageEvent) UnmarshalJSON(data []byte) error {
	var raw pageEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded, err := NewPageEvent(raw.Name, raw.User, raw.Timestamp, raw.Duration)
	if err != nil {
		return err
	}

	*e = decoded
	return nil
}
