// Package consumer reads page events from a topic and applies a side effect to each.
package consumer

import (
	"context"

	"go.uber.org/zap"

	"pageflow/internal/pageflow"
)

// LogHandler writes one structured log line per event.
type LogHandler struct {
	logger *zap.Logger
}

func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger.Named("console")}
}

func (h *LogHandler) HandleEvent(_ context.Context, rec pageflow.Record, e pageflow.PageEvent) error {
	h.logger.Info("page event",
		zap.String("topic", rec.Topic),
		zap.Int32("partition", rec.Partition),
		zap.Int64("offset", rec.Offset),
		zap.ByteString("key", rec.Key),
		zap.String("name", e.Name()),
		zap.String("user", e.User()),
		zap.Time("timestamp", e.Timestamp()),
		zap.Int64("duration", e.Duration()),
	)
	return nil
}
