package transform

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/pageflow/tracing"
	"pageflow/internal/validator"
)

// Aggregator observes every forwarded event, e.g. to maintain windowed counts.
type Aggregator interface {
	Observe(ctx context.Context, e pageflow.PageEvent) error
}

// Runner connects a Stage between an input subscription and an output producer.
type Runner struct {
	stage      *Stage
	subscriber pageflow.Subscriber
	producer   pageflow.Producer
	registry   *metrics.Registry
	tracer     *tracing.Tracer
	logger     *zap.Logger
	inputTopic string
	aggregator Aggregator
}

func NewRunner(
	stage *Stage,
	subscriber pageflow.Subscriber,
	producer pageflow.Producer,
	registry *metrics.Registry,
	tracer *tracing.Tracer,
	logger *zap.Logger,
	inputTopic string,
) (*Runner, error) {
	r := Runner{
		stage:      stage,
		subscriber: subscriber,
		producer:   producer,
		registry:   registry,
		tracer:     tracer,
		logger:     logger,
		inputTopic: inputTopic,
	}

	if err := validator.Validate("transform", r.stage, r.subscriber, r.producer, r.registry, r.tracer, r.logger, r.inputTopic); err != nil {
		return nil, fmt.Errorf("failed to validate transform deps: %w", err)
	}
	r.logger = r.logger.Named("transform").With(
		zap.String("input", inputTopic),
		zap.String("output", stage.outputTopic),
	)

	return &r, nil
}

// WithAggregator attaches an aggregator fed with every forwarded event.
func (r *Runner) WithAggregator(a Aggregator) *Runner {
	r.aggregator = a
	return r
}

// Run consumes the input topic until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("transform started", zap.Int64("threshold", r.stage.threshold))

	if err := r.subscriber.Subscribe(ctx, []string{r.inputTopic}, r.handle); err != nil {
		return fmt.Errorf("failed to run transform on %s: %w", r.inputTopic, err)
	}

	r.logger.Info("transform stopped")
	return nil
}

func (r *Runner) handle(ctx context.Context, rec pageflow.Record) error {
	ctx = r.tracer.Extract(ctx, rec.Headers)
	ctx, span := r.tracer.StartSpan(ctx, "transform.process", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(r.tracer.RecordAttributes(rec)...)

	err := r.process(ctx, rec)
	r.tracer.End(ctx, span, err)

	return err
}

func (r *Runner) process(ctx context.Context, rec pageflow.Record) error {
	out, e, err := r.stage.Process(rec)
	if err != nil {
		r.registry.RecordTransform(rec.Topic, metrics.OutcomeInvalid)
		r.logger.Warn("skipping malformed record",
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
			zap.ByteString("value", rec.Value),
			zap.Error(err),
		)
		return nil
	}

	if len(out) == 0 {
		r.registry.RecordTransform(rec.Topic, metrics.OutcomeDropped)
		r.logger.Debug("dropped event", zap.Stringer("event", e))
		return nil
	}

	for _, o := range out {
		r.tracer.Inject(ctx, o.Headers)
		if err := r.producer.Produce(ctx, o); err != nil {
			r.registry.RecordTransform(rec.Topic, metrics.OutcomeFailed)
			return fmt.Errorf("failed to forward %s to %s: %w", e.Name(), o.Topic, err)
		}
	}
	r.registry.RecordTransform(rec.Topic, metrics.OutcomeForwarded)

	if r.aggregator != nil {
		if err := r.aggregator.Observe(ctx, e); err != nil {
			const errMsg = "failed to aggregate event"
			r.logger.Error(errMsg, zap.Stringer("event", e), zap.Error(err))
			return fmt.Errorf(errMsg+": %w", err)
		}
	}

	return nil
}
