package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/validator"
)

// Consumer decodes records from a subscription and hands each event to an
// EventHandler. A failing or panicking handler never ends the subscription.
// Only rejected and panicked records are counted here; wrap the handler with
// MetricsHandler for the rest.
type Consumer struct {
	subscriber pageflow.Subscriber
	handler    pageflow.EventHandler
	registry   *metrics.Registry
	logger     *zap.Logger
}

func NewConsumer(
	subscriber pageflow.Subscriber,
	handler pageflow.EventHandler,
	registry *metrics.Registry,
	logger *zap.Logger,
) (*Consumer, error) {
	c := Consumer{
		subscriber: subscriber,
		handler:    handler,
		registry:   registry,
		logger:     logger,
	}

	if err := validator.Validate("consumer", c.subscriber, c.handler, c.registry, c.logger); err != nil {
		return nil, fmt.Errorf("failed to validate consumer deps: %w", err)
	}
	c.logger = c.logger.Named("consumer")

	return &c, nil
}

// Consume blocks until ctx is done or the subscription ends.
func (c *Consumer) Consume(ctx context.Context, topic string) error {
	logger := c.logger.With(zap.String("topic", topic))
	logger.Info("consumer started")

	err := c.subscriber.Subscribe(ctx, []string{topic}, func(ctx context.Context, rec pageflow.Record) error {
		c.handle(ctx, logger, rec)
		return nil
	})
	if err != nil {
		const errMsg = "failed to consume topic"
		logger.Error(errMsg, zap.Error(err))
		return fmt.Errorf(errMsg+" %s: %w", topic, err)
	}

	logger.Info("consumer stopped")
	return nil
}

func (c *Consumer) handle(ctx context.Context, logger *zap.Logger, rec pageflow.Record) {
	start := time.Now()
	logger = logger.With(zap.Int32("partition", rec.Partition), zap.Int64("offset", rec.Offset))

	e, err := decodeRecord(rec)
	if err != nil {
		c.registry.RecordConsume(rec.Topic, metrics.OutcomeRejected, time.Since(start))
		logger.Warn("skipping undecodable record", zap.ByteString("value", rec.Value), zap.Error(err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.registry.RecordConsume(rec.Topic, metrics.OutcomePanic, time.Since(start))
			logger.Error("handler panicked", zap.Any("panic", r), zap.Stringer("event", e))
		}
	}()

	if err := c.handler.HandleEvent(ctx, rec, e); err != nil {
		logger.Error("failed to handle event", zap.Stringer("event", e), zap.Error(err))
	}
}

// decodeRecord accepts JSON page events and the (name, duration) records emitted
// by the transform stage. The latter carry no user and take the record time.
func decodeRecord(rec pageflow.Record) (pageflow.PageEvent, error) {
	if rec.Header(pageflow.HeaderContentType) != pageflow.ContentTypeInt64 {
		return pageflow.DecodeEvent(rec.Value)
	}

	d, err := pageflow.DecodeDuration(rec.Value)
	if err != nil {
		return pageflow.PageEvent{}, err
	}
	return pageflow.NewPageEvent(string(rec.Key), "", rec.Timestamp, d)
}
