// Package window keeps per-page tumbling window aggregates.
package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pageflow/internal/couchbase"
	"pageflow/internal/pageflow"
)

// ErrNotFound is returned when a window has no aggregate yet.
var ErrNotFound = errors.New("window not found")

// Window is the aggregate of one page over [Start, End).
type Window struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	StartMillis   int64     `json:"startMillis"`
	Count         int64     `json:"count"`
	TotalDuration int64     `json:"totalDuration"`

	couchbase.Cas `json:"-"`
}

// Store persists window aggregates.
type Store interface {
	// Increment adds one event with the given duration to the window starting at start,
	// creating it when needed, and returns the updated aggregate.
	Increment(ctx context.Context, name string, start time.Time, size time.Duration, duration int64) (Window, error)

	// Get returns the aggregate for the window or ErrNotFound.
	Get(ctx context.Context, name string, start time.Time) (Window, error)

	// List returns the windows of a page starting at or after since, oldest first.
	List(ctx context.Context, name string, since time.Time) ([]Window, error)
}

// Key identifies a window document.
func Key(name string, start time.Time) string {
	return fmt.Sprintf("window::%s::%d", name, start.UnixMilli())
}

// Bounds returns the epoch-aligned tumbling window of the given size containing ts.
func Bounds(ts time.Time, size time.Duration) (time.Time, time.Time) {
	ms := size.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	at := ts.UnixMilli()
	offset := at % ms
	if offset < 0 {
		offset += ms
	}
	start := time.UnixMilli(at - offset).UTC()
	return start, start.Add(time.Duration(ms) * time.Millisecond)
}

func newWindow(name string, start time.Time, size time.Duration) Window {
	start = start.UTC()
	return Window{
		ID:          Key(name, start),
		Name:        name,
		Start:       start,
		End:         start.Add(size),
		StartMillis: start.UnixMilli(),
	}
}

// WindowCount converts the aggregate to its wire form.
func (w Window) WindowCount() pageflow.WindowCount {
	return pageflow.WindowCount{
		Name:          w.Name,
		WindowStart:   w.Start,
		WindowEnd:     w.End,
		Count:         w.Count,
		TotalDuration: w.TotalDuration,
	}
}
