package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config holds the API server settings.
type Config struct {
	Port           int           `env:"PORT" envDefault:"8080"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`
	Mode           string        `env:"GIN_MODE" envDefault:"release"`
}

type Server struct {
	server *http.Server
	logger *zap.Logger
}

func NewServer(config Config, router *gin.Engine, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      router,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  config.Timeout * 2,
		},
		logger: logger.Named("api-server"),
	}
}

// Start serves until ctx is done, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting api server", zap.String("addr", s.server.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("failed to gracefully shutdown api server", zap.Error(err))
		return err
	}

	s.logger.Info("api server stopped")
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
