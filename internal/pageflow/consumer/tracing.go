package consumer

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/tracing"
)

// TracedHandler continues the trace carried in the record headers.
// Layer order: TracedHandler -> MetricsHandler -> handler
type TracedHandler struct {
	handler pageflow.EventHandler
	tracer  *tracing.Tracer
}

func NewTracedHandler(handler pageflow.EventHandler, tracer *tracing.Tracer) pageflow.EventHandler {
	return &TracedHandler{
		handler: handler,
		tracer:  tracer,
	}
}

func (h *TracedHandler) HandleEvent(ctx context.Context, rec pageflow.Record, e pageflow.PageEvent) error {
	ctx = h.tracer.Extract(ctx, rec.Headers)
	ctx, span := h.tracer.StartSpan(ctx, "consumer.handle", trace.WithSpanKind(trace.SpanKindConsumer))

	span.SetAttributes(h.tracer.RecordAttributes(rec)...)
	span.SetAttributes(h.tracer.EventAttributes(rec.Topic, e)...)

	err := h.handler.HandleEvent(ctx, rec, e)
	h.tracer.End(ctx, span, err)

	return err
}
