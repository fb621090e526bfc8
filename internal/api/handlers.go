// Package api exposes the HTTP publish endpoint and read access to window aggregates.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/generator"
	"pageflow/internal/pageflow/window"
	"pageflow/internal/validator"
)

type Handlers struct {
	publisher      pageflow.Publisher
	generator      *generator.Generator
	windows        window.Store
	publishTimeout time.Duration
	logger         *zap.Logger
}

// NewHandlers builds the API handlers. windows may be nil, in which case
// /windows is not served.
func NewHandlers(
	publisher pageflow.Publisher,
	gen *generator.Generator,
	windows window.Store,
	publishTimeout time.Duration,
	logger *zap.Logger,
) (*Handlers, error) {
	h := Handlers{
		publisher:      publisher,
		generator:      gen,
		windows:        windows,
		publishTimeout: publishTimeout,
		logger:         logger,
	}

	if err := validator.Validate("api handlers", h.publisher, h.generator, h.publishTimeout, h.logger); err != nil {
		return nil, fmt.Errorf("failed to validate api deps: %w", err)
	}
	h.logger = h.logger.Named("api")

	return &h, nil
}

// Publish handles GET /publish?name=&topic=. The response is sent after the broker ack.
func (h *Handlers) Publish(c *gin.Context) {
	name := c.Query("name")
	topic := c.Query("topic")
	if name == "" || topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and topic query parameters are required"})
		return
	}

	e := h.generator.NewEvent(name)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.publishTimeout)
	defer cancel()

	if err := h.publisher.Publish(ctx, topic, e); err != nil {
		h.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.Stringer("event", e),
			zap.Error(err),
		)
		if errors.Is(err, pageflow.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to publish event"})
		return
	}

	c.JSON(http.StatusOK, e)
}

// Windows handles GET /windows?name=&since=. since is RFC 3339 and defaults to one hour ago.
func (h *Handlers) Windows(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		return
	}

	since := time.Now().Add(-time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		since = parsed
	}

	windows, err := h.windows.List(c.Request.Context(), name, since)
	if err != nil {
		h.logger.Error("failed to list windows", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list windows"})
		return
	}
	if windows == nil {
		windows = []window.Window{}
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "windows": windows})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "pageflow-api"})
}
