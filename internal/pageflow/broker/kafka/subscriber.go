package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/validator"
)

// StreamSubscriber polls a confluent consumer and hands every record to a handler.
// Offsets are stored only after the handler returns, so a crash replays the
// unhandled record.
type StreamSubscriber struct {
	consumer    Consumer
	logger      *zap.Logger
	pollTimeout time.Duration
}

// NewSubscriber connects a confluent consumer in the given group.
func NewSubscriber(cfg Config, groupID string, logger *zap.Logger) (*StreamSubscriber, error) {
	c, err := kafka.NewConsumer(consumerConfigMap(cfg, groupID))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer for group %s: %w", groupID, err)
	}

	return NewStreamSubscriber(c, logger, cfg.PollTimeout)
}

func NewStreamSubscriber(consumer Consumer, logger *zap.Logger, pollTimeout time.Duration) (*StreamSubscriber, error) {
	s := StreamSubscriber{
		consumer:    consumer,
		logger:      logger,
		pollTimeout: pollTimeout,
	}

	if err := validator.Validate("kafka subscriber", s.consumer, s.logger, s.pollTimeout); err != nil {
		return nil, fmt.Errorf("failed to validate kafka subscriber deps: %w", err)
	}
	s.logger = s.logger.Named("kafka-subscriber")

	return &s, nil
}

// Subscribe implements pageflow.Subscriber.
func (s *StreamSubscriber) Subscribe(ctx context.Context, topics []string, h pageflow.RecordHandler) error {
	if err := s.consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topics %v: %w", topics, err)
	}

	logger := s.logger.With(zap.Strings("topics", topics))
	logger.Info("subscribed")

	for {
		select {
		case <-ctx.Done():
			logger.Info("subscription stopped")
			return nil
		default:
		}

		msg, err := s.consumer.ReadMessage(s.pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kerr.IsFatal() {
					return fmt.Errorf("fatal consumer error: %w", err)
				}
			}
			logger.Error("failed to read message", zap.Error(err))
			continue
		}

		rec := fromMessage(msg)
		if err := h(ctx, rec); err != nil {
			logger.Error("failed to handle record",
				zap.String("topic", rec.Topic),
				zap.Int32("partition", rec.Partition),
				zap.Int64("offset", rec.Offset),
				zap.Error(err),
			)
		}

		if _, err := s.consumer.StoreMessage(msg); err != nil {
			logger.Warn("failed to store offset", zap.Int64("offset", rec.Offset), zap.Error(err))
		}
	}
}

func (s *StreamSubscriber) Close() error {
	if err := s.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
