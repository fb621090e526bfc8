package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/pageflow/metrics"
)

// NewRouter wires the handlers into a gin engine with recovery, request logging
// and request metrics.
func NewRouter(h *Handlers, registry *metrics.Registry, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger.Named("http")), requestMetrics(registry))

	r.GET("/health", h.Health)
	r.GET("/publish", h.Publish)
	if h.windows != nil {
		r.GET("/windows", h.Windows)
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		)
	}
}

func requestMetrics(registry *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		registry.RecordHTTPRequest(path, c.Writer.Status())
	}
}
