package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"pageflow/internal/pageflow"
)

// Config holds configuration parameters for OpenTelemetry tracing setup.
// When Enabled is false no exporter is created and spans are no-ops.
type Config struct {
	Enabled        bool          `env:"ENABLED" envDefault:"false"`
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"pageflow"`
	ServiceVersion string        `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	Endpoint       string        `env:"ENDPOINT" envDefault:"localhost:4318"`
	SampleRate     float64       `env:"SAMPLE_RATE" envDefault:"1.0"`
	BatchTimeout   time.Duration `env:"BATCH_TIMEOUT" envDefault:"1s"`
	ExportTimeout  time.Duration `env:"EXPORT_TIMEOUT" envDefault:"30s"`
	MaxExportBatch int           `env:"MAX_EXPORT_BATCH" envDefault:"512"`
	MaxQueueSize   int           `env:"MAX_QUEUE_SIZE" envDefault:"2048"`
}

// Tracer wraps the OpenTelemetry tracer with convenience methods for the pipeline.
// It carries the propagator used to move trace context across record headers.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracer creates and configures a new OpenTelemetry tracer with OTLP HTTP export.
// It returns the tracer and a cleanup function that flushes pending spans.
func NewTracer(config Config) (*Tracer, func(context.Context) error, error) {
	if !config.Enabled {
		return NewNoopTracer(), func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("service.environment", config.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(config.ExportTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	processor := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(config.BatchTimeout),
		sdktrace.WithExportTimeout(config.ExportTimeout),
		sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
		sdktrace.WithMaxQueueSize(config.MaxQueueSize),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)

	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	tracer := &Tracer{
		tracer:     tp.Tracer(config.ServiceName),
		propagator: propagator,
	}

	cleanup := func(ctx context.Context) error {
		if err := tp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("failed to flush traces: %w", err)
		}
		return tp.Shutdown(ctx)
	}

	return tracer, cleanup, nil
}

// NewNoopTracer returns a tracer whose spans record nothing.
func NewNoopTracer() *Tracer {
	return NewTracerFromProvider(noop.NewTracerProvider(), "pageflow")
}

// NewTracerFromProvider wraps an existing provider, e.g. an in-memory one in tests.
func NewTracerFromProvider(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{
		tracer:     tp.Tracer(name),
		propagator: propagation.TraceContext{},
	}
}

// StartSpan creates a new tracing span with the specified name and options.
func (t *Tracer) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

// RecordError records an error event on the active span and sets the span status to error.
func (t *Tracer) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// End sets the final status of the span from err and ends it.
func (t *Tracer) End(ctx context.Context, span trace.Span, err error) {
	if err != nil {
		t.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(t.ErrorAttributes(err)...)
	span.End()
}

// Inject writes the trace context of ctx into the record headers.
func (t *Tracer) Inject(ctx context.Context, headers map[string]string) {
	t.propagator.Inject(ctx, pageflow.HeaderCarrier(headers))
}

// Extract returns ctx enriched with the trace context found in the record headers.
func (t *Tracer) Extract(ctx context.Context, headers map[string]string) context.Context {
	if headers == nil {
		return ctx
	}
	return t.propagator.Extract(ctx, pageflow.HeaderCarrier(headers))
}

// TopicAttributes creates the messaging attributes shared by every operation.
func (t *Tracer) TopicAttributes(topic string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", topic),
	}
}

// EventAttributes describes a page event.
func (t *Tracer) EventAttributes(topic string, e pageflow.PageEvent) []attribute.KeyValue {
	attrs := t.TopicAttributes(topic)
	attrs = append(attrs,
		attribute.String("pageflow.page", e.Name()),
		attribute.String("pageflow.user", e.User()),
		attribute.Int64("pageflow.duration", e.Duration()),
	)
	return attrs
}

// RecordAttributes describes a delivered record.
func (t *Tracer) RecordAttributes(rec pageflow.Record) []attribute.KeyValue {
	attrs := t.TopicAttributes(rec.Topic)
	attrs = append(attrs,
		attribute.Int("messaging.kafka.partition", int(rec.Partition)),
		attribute.Int64("messaging.kafka.offset", rec.Offset),
		attribute.String("messaging.kafka.message.key", string(rec.Key)),
	)
	return attrs
}

// DatabaseAttributes creates attributes for window store operations.
func (t *Tracer) DatabaseAttributes(system, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.system", system),
	}
}

// ErrorAttributes creates attributes based on error state.
func (t *Tracer) ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{
			attribute.Bool("error", false),
		}
	}
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String("error.type", fmt.Sprintf("%T", err)),
		attribute.String("error.message", err.Error()),
	}
}
