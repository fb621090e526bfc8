package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/tracing"
	"pageflow/internal/validator"
)

// ErrEmptyTopic is returned when publishing without a destination.
var ErrEmptyTopic = errors.New("topic must not be empty")

// Publisher serializes page events and writes them keyed by page name, so all
// events for one page land on the same partition.
type Publisher struct {
	producer pageflow.Producer
	tracer   *tracing.Tracer
	logger   *zap.Logger
	newID    func() string
}

func NewPublisher(producer pageflow.Producer, tracer *tracing.Tracer, logger *zap.Logger) (*Publisher, error) {
	p := Publisher{
		producer: producer,
		tracer:   tracer,
		logger:   logger,
		newID:    uuid.NewString,
	}

	if err := validator.Validate("publisher", p.producer, p.tracer, p.logger); err != nil {
		return nil, fmt.Errorf("failed to validate publisher deps: %w", err)
	}
	p.logger = p.logger.Named("publisher")

	return &p, nil
}

// Publish implements pageflow.Publisher.
func (p *Publisher) Publish(ctx context.Context, topic string, e pageflow.PageEvent) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	value, err := pageflow.EncodeEvent(e)
	if err != nil {
		const errMsg = "failed to serialize page event"
		p.logger.Error(errMsg, zap.String("topic", topic), zap.Stringer("event", e), zap.Error(err))
		return fmt.Errorf(errMsg+": %w", err)
	}

	headers := map[string]string{
		pageflow.HeaderEventType:   pageflow.EventTypePageEvent,
		pageflow.HeaderContentType: pageflow.ContentTypeJSON,
		pageflow.HeaderMessageID:   p.newID(),
	}
	p.tracer.Inject(ctx, headers)

	rec := pageflow.Record{
		Topic:     topic,
		Key:       []byte(e.Name()),
		Value:     value,
		Headers:   headers,
		Timestamp: e.Timestamp(),
	}

	if err := p.producer.Produce(ctx, rec); err != nil {
		const errMsg = "failed to publish page event"
		p.logger.Error(errMsg,
			zap.String("topic", topic),
			zap.String("messageId", headers[pageflow.HeaderMessageID]),
			zap.Error(err),
		)
		return fmt.Errorf(errMsg+" to %s: %w", topic, err)
	}

	p.logger.Debug("published page event",
		zap.String("topic", topic),
		zap.String("messageId", headers[pageflow.HeaderMessageID]),
		zap.Stringer("event", e),
	)

	return nil
}
