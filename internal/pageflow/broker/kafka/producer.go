package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/validator"
)

// ErrAckTimeout is returned when the broker does not acknowledge a record in time.
var ErrAckTimeout = errors.New("timed out waiting for delivery confirmation")

// StreamProducer writes records through a confluent producer and waits for each delivery report.
type StreamProducer struct {
	producer     Producer
	logger       *zap.Logger
	ackTimeout   time.Duration
	flushTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewProducer connects a confluent producer using cfg.
func NewProducer(cfg Config, logger *zap.Logger) (*StreamProducer, error) {
	p, err := kafka.NewProducer(producerConfigMap(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewStreamProducer(p, logger, cfg.AckTimeout, cfg.FlushTimeout)
}

// NewStreamProducer wraps an existing client and starts draining its event channel.
func NewStreamProducer(producer Producer, logger *zap.Logger, ackTimeout, flushTimeout time.Duration) (*StreamProducer, error) {
	p := StreamProducer{
		producer:     producer,
		logger:       logger,
		ackTimeout:   ackTimeout,
		flushTimeout: flushTimeout,
		done:         make(chan struct{}),
	}

	if err := validator.Validate("kafka producer", p.producer, p.logger, p.ackTimeout); err != nil {
		return nil, fmt.Errorf("failed to validate kafka producer deps: %w", err)
	}
	p.logger = p.logger.Named("kafka-producer")

	go p.handleEvents()

	return &p, nil
}

// Produce implements pageflow.Producer.
func (p *StreamProducer) Produce(ctx context.Context, rec pageflow.Record) error {
	if rec.Topic == "" {
		return errors.New("failed to produce record: empty topic")
	}

	delivery := make(chan kafka.Event, 1)
	if err := p.producer.Produce(toMessage(rec), delivery); err != nil {
		return fmt.Errorf("failed to enqueue record for topic %s: %w", rec.Topic, err)
	}

	timer := time.NewTimer(p.ackTimeout)
	defer timer.Stop()

	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T for topic %s", ev, rec.Topic)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("failed to deliver record to %s: %w", rec.Topic, m.TopicPartition.Error)
		}
		p.logger.Debug("record delivered",
			zap.String("topic", rec.Topic),
			zap.Int32("partition", m.TopicPartition.Partition),
			zap.Int64("offset", int64(m.TopicPartition.Offset)),
		)
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: topic %s after %s", ErrAckTimeout, rec.Topic, p.ackTimeout)
	case <-ctx.Done():
		return fmt.Errorf("failed waiting for delivery to %s: %w", rec.Topic, ctx.Err())
	}
}

// handleEvents logs client-level errors that are not tied to a delivery channel.
func (p *StreamProducer) handleEvents() {
	events := p.producer.Events()
	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case kafka.Error:
				p.logger.Error("kafka producer error", zap.Error(e), zap.Bool("fatal", e.IsFatal()))
			case *kafka.Message:
				if e.TopicPartition.Error != nil {
					p.logger.Error("async delivery failed", zap.Error(e.TopicPartition.Error))
				}
			}
		}
	}
}

// Close flushes outstanding records and closes the client.
func (p *StreamProducer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)

		if remaining := p.producer.Flush(int(p.flushTimeout.Milliseconds())); remaining > 0 {
			const errMsg = "records still queued after flush"
			p.logger.Warn(errMsg, zap.Int("remaining", remaining))
			err = fmt.Errorf(errMsg+": %d", remaining)
		}

		p.producer.Close()
	})

	return err
}
