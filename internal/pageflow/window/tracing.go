package window

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"pageflow/internal/pageflow/tracing"
)

// TracedStore wraps a Store with distributed tracing
// Layer order: TracedStore -> MetricsStore -> Store (real thing)
type TracedStore struct {
	store  Store
	tracer *tracing.Tracer
	system string
}

// NewTracedStore wraps store; system names the backend in span attributes.
func NewTracedStore(store Store, tracer *tracing.Tracer, system string) Store {
	return &TracedStore{
		store:  store,
		tracer: tracer,
		system: system,
	}
}

func (s *TracedStore) Increment(ctx context.Context, name string, start time.Time, size time.Duration, duration int64) (Window, error) {
	ctx, span := s.tracer.StartSpan(ctx, "window.increment")
	span.SetAttributes(s.tracer.DatabaseAttributes(s.system, "window_increment")...)
	span.SetAttributes(
		attribute.String("pageflow.page", name),
		attribute.Int64("pageflow.window_start", start.UnixMilli()),
		attribute.Int64("pageflow.duration", duration),
	)

	w, err := s.store.Increment(ctx, name, start, size, duration)
	if err == nil {
		span.SetAttributes(attribute.Int64("pageflow.window_count", w.Count))
	}
	s.tracer.End(ctx, span, err)

	return w, err
}

func (s *TracedStore) Get(ctx context.Context, name string, start time.Time) (Window, error) {
	ctx, span := s.tracer.StartSpan(ctx, "window.get")
	span.SetAttributes(s.tracer.DatabaseAttributes(s.system, "window_get")...)
	span.SetAttributes(attribute.String("pageflow.page", name))

	w, err := s.store.Get(ctx, name, start)
	s.tracer.End(ctx, span, err)

	return w, err
}

func (s *TracedStore) List(ctx context.Context, name string, since time.Time) ([]Window, error) {
	ctx, span := s.tracer.StartSpan(ctx, "window.list")
	span.SetAttributes(s.tracer.DatabaseAttributes(s.system, "window_list")...)
	span.SetAttributes(attribute.String("pageflow.page", name))

	windows, err := s.store.List(ctx, name, since)
	if err == nil {
		span.SetAttributes(attribute.Int("pageflow.windows", len(windows)))
	}
	s.tracer.End(ctx, span, err)

	return windows, err
}
