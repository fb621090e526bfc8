// Package transform filters page events and re-keys them by page name.
package transform

import (
	"fmt"

	"pageflow/internal/pageflow"
)

// DefaultThreshold is the duration at or below which events are dropped.
const DefaultThreshold int64 = 100

// Stage is a pure filter and projection: events with duration above the
// threshold become one (name, duration) record, all others are dropped.
type Stage struct {
	threshold   int64
	outputTopic string
}

func NewStage(threshold int64, outputTopic string) (*Stage, error) {
	if outputTopic == "" {
		return nil, fmt.Errorf("failed to create stage: output topic must not be empty")
	}
	if threshold < 0 {
		return nil, fmt.Errorf("failed to create stage: threshold %d must not be negative", threshold)
	}

	return &Stage{threshold: threshold, outputTopic: outputTopic}, nil
}

// Apply returns the projected key and value and whether the event passes the filter.
func (s *Stage) Apply(e pageflow.PageEvent) (string, int64, bool) {
	if e.Duration() <= s.threshold {
		return "", 0, false
	}
	return e.Name(), e.Duration(), true
}

// Process decodes an input record and returns zero or one output records.
// Malformed input is reported as an error.
func (s *Stage) Process(rec pageflow.Record) ([]pageflow.Record, pageflow.PageEvent, error) {
	e, err := pageflow.DecodeEvent(rec.Value)
	if err != nil {
		return nil, pageflow.PageEvent{}, err
	}

	key, value, ok := s.Apply(e)
	if !ok {
		return nil, e, nil
	}

	out := pageflow.Record{
		Topic:     s.outputTopic,
		Key:       []byte(key),
		Value:     pageflow.EncodeDuration(value),
		Timestamp: e.Timestamp(),
		Headers: map[string]string{
			pageflow.HeaderEventType:   pageflow.EventTypeDuration,
			pageflow.HeaderContentType: pageflow.ContentTypeInt64,
		},
	}
	if id := rec.Header(pageflow.HeaderMessageID); id != "" {
		out.Headers[pageflow.HeaderMessageID] = id
	}

	return []pageflow.Record{out}, e, nil
}
