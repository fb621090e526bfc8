package publisher

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/tracing"
)

// TracedPublisher wraps a pageflow.Publisher with distributed tracing
// Layer order: TracedPublisher -> MetricsPublisher -> Publisher (real thing)
type TracedPublisher struct {
	publisher pageflow.Publisher
	tracer    *tracing.Tracer
}

// NewTracedPublisher creates a new traced publisher that wraps a metrics publisher
func NewTracedPublisher(publisher pageflow.Publisher, tracer *tracing.Tracer) pageflow.Publisher {
	return &TracedPublisher{
		publisher: publisher,
		tracer:    tracer,
	}
}

// Publish implements pageflow.Publisher.Publish with distributed tracing.
// The span is active while the record is built, so its context is injected into the headers.
func (p *TracedPublisher) Publish(ctx context.Context, topic string, e pageflow.PageEvent) error {
	ctx, span := p.tracer.StartSpan(ctx, "publisher.publish", trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(p.tracer.EventAttributes(topic, e)...)

	err := p.publisher.Publish(ctx, topic, e)
	p.tracer.End(ctx, span, err)

	return err
}
