package publisher

import (
	"context"
	"time"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/metrics"
)

// MetricsPublisher wraps a pageflow.Publisher with metrics collection
type MetricsPublisher struct {
	publisher pageflow.Publisher
	registry  *metrics.Registry
}

// NewMetricsPublisher creates a new instrumented publisher
func NewMetricsPublisher(publisher pageflow.Publisher, registry *metrics.Registry) pageflow.Publisher {
	return &MetricsPublisher{
		publisher: publisher,
		registry:  registry,
	}
}

// Publish implements pageflow.Publisher.Publish with metrics collection
func (p *MetricsPublisher) Publish(ctx context.Context, topic string, e pageflow.PageEvent) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, topic, e)
	duration := time.Since(start)

	p.registry.RecordPublish(topic, e.Duration(), duration, err)

	return err
}
