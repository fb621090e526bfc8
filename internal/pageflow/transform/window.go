package transform

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/pageflow/window"
	"pageflow/internal/validator"
)

// DefaultWindowSize is the tumbling window length for page counts.
const DefaultWindowSize = time.Minute

// WindowedCounter counts forwarded events per page in tumbling windows keyed by
// event time and publishes each updated aggregate.
type WindowedCounter struct {
	store    window.Store
	producer pageflow.Producer
	registry *metrics.Registry
	logger   *zap.Logger
	topic    string
	size     time.Duration
}

func NewWindowedCounter(
	store window.Store,
	producer pageflow.Producer,
	registry *metrics.Registry,
	logger *zap.Logger,
	topic string,
	size time.Duration,
) (*WindowedCounter, error) {
	c := WindowedCounter{
		store:    store,
		producer: producer,
		registry: registry,
		logger:   logger,
		topic:    topic,
		size:     size,
	}

	if err := validator.Validate("windowed counter", c.store, c.producer, c.registry, c.logger, c.topic, c.size); err != nil {
		return nil, fmt.Errorf("failed to validate windowed counter deps: %w", err)
	}
	c.logger = c.logger.Named("window")

	return &c, nil
}

// Observe implements Aggregator.
func (c *WindowedCounter) Observe(ctx context.Context, e pageflow.PageEvent) error {
	err := c.observe(ctx, e)
	c.registry.RecordWindowUpdate(err)
	return err
}

func (c *WindowedCounter) observe(ctx context.Context, e pageflow.PageEvent) error {
	start, _ := window.Bounds(e.Timestamp(), c.size)

	w, err := c.store.Increment(ctx, e.Name(), start, c.size, e.Duration())
	if err != nil {
		return fmt.Errorf("failed to update window: %w", err)
	}

	value, err := pageflow.EncodeWindowCount(w.WindowCount())
	if err != nil {
		return err
	}

	rec := pageflow.Record{
		Topic:     c.topic,
		Key:       []byte(w.ID),
		Value:     value,
		Timestamp: e.Timestamp(),
		Headers: map[string]string{
			pageflow.HeaderEventType:   pageflow.EventTypeWindowCount,
			pageflow.HeaderContentType: pageflow.ContentTypeJSON,
		},
	}
	if err := c.producer.Produce(ctx, rec); err != nil {
		return fmt.Errorf("failed to publish window %s: %w", w.ID, err)
	}

	c.logger.Debug("window updated",
		zap.String("window", w.ID),
		zap.Int64("count", w.Count),
		zap.Int64("totalDuration", w.TotalDuration),
	)

	return nil
}
