package consumer

import (
	"context"
	"time"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/metrics"
)

// MetricsHandler records the outcome and latency of every handled event.
type MetricsHandler struct {
	handler  pageflow.EventHandler
	registry *metrics.Registry
}

func NewMetricsHandler(handler pageflow.EventHandler, registry *metrics.Registry) pageflow.EventHandler {
	return &MetricsHandler{
		handler:  handler,
		registry: registry,
	}
}

func (h *MetricsHandler) HandleEvent(ctx context.Context, rec pageflow.Record, e pageflow.PageEvent) error {
	start := time.Now()
	err := h.handler.HandleEvent(ctx, rec, e)
	outcome := metrics.OutcomeHandled
	if err != nil {
		outcome = metrics.OutcomeError
	}
	h.registry.RecordConsume(rec.Topic, outcome, time.Since(start))

	return err
}
