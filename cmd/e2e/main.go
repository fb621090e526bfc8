package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pageflow/internal/config"
	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/broker/kafka"
	"pageflow/internal/pageflow/broker/memory"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/pageflow/publisher"
	"pageflow/internal/pageflow/tracing"
	"pageflow/internal/pageflow/transform"
)

type Options struct {
	Timeout    time.Duration `env:"E2E_TIMEOUT" envDefault:"30s"`
	Grace      time.Duration `env:"E2E_GRACE" envDefault:"2s"`
	CPUProfile string        `env:"E2E_CPU_PROFILE"`
}

// result is one (page, duration) record read back from the durations topic.
type result struct {
	name     string
	duration int64
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	var opts Options
	if err := env.Parse(&opts); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	if opts.CPUProfile != "" {
		f, err := os.Create(opts.CPUProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := time.Now()
	if err := run(ctx, cfg, opts, logger, tracer); err != nil {
		logger.Error("e2e failed", zap.Error(err))
		stop()
		os.Exit(1)
	}

	fmt.Printf("\n\n TEST COMPLETE IN %.2f seconds\n", time.Since(now).Seconds())
}

func run(ctx context.Context, cfg config.Config, opts Options, logger *zap.Logger, tracer *tracing.Tracer) error {
	registry := metrics.NewRegistry()
	registry.SetSystemInfo("e2e-test", time.Now().Format(time.RFC3339))

	producer, transformSub, resultSub, cleanup, err := brokers(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	stage, err := transform.NewStage(cfg.Transform.Threshold, cfg.Topics.Durations)
	if err != nil {
		return err
	}
	runner, err := transform.NewRunner(stage, transformSub, producer, registry, tracer, logger, cfg.Topics.Generated)
	if err != nil {
		return err
	}

	base, err := publisher.NewPublisher(producer, tracer, logger)
	if err != nil {
		return err
	}
	pub := publisher.NewTracedPublisher(publisher.NewMetricsPublisher(base, registry), tracer)

	// Kafka keeps earlier runs' records; only records stamped at or after runAt count.
	runAt := time.Now().UTC().Truncate(time.Millisecond)

	var (
		mu  sync.Mutex
		got []result
	)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return resultSub.Subscribe(gctx, []string{cfg.Topics.Durations}, func(_ context.Context, rec pageflow.Record) error {
			if rec.Timestamp.Before(runAt) {
				return nil
			}
			d, err := pageflow.DecodeDuration(rec.Value)
			if err != nil {
				return err
			}

			mu.Lock()
			got = append(got, result{name: string(rec.Key), duration: d})
			mu.Unlock()

			logger.Info("received", zap.ByteString("key", rec.Key), zap.Int64("duration", d))
			return nil
		})
	})
	g.Go(func() error {
		defer cancel()

		for _, s := range []struct {
			name     string
			duration int64
		}{
			{name: "page1", duration: 150},
			{name: "page2", duration: 50},
		} {
			e, err := pageflow.NewPageEvent(s.name, "e2e-"+uuid.NewString(), runAt, s.duration)
			if err != nil {
				return err
			}
			if err := pub.Publish(gctx, cfg.Topics.Generated, e); err != nil {
				return fmt.Errorf("failed to publish %s: %w", e, err)
			}
			logger.Info("published", zap.Stringer("event", e))
		}

		if err := waitFor(gctx, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) > 0
		}); err != nil {
			return fmt.Errorf("no transformed record arrived: %w", err)
		}

		// give a wrongly forwarded page2 the chance to show up
		select {
		case <-gctx.Done():
		case <-time.After(opts.Grace):
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if len(got) != 1 || got[0] != (result{name: "page1", duration: 150}) {
		return fmt.Errorf("expected exactly (page1, 150), got %v", got)
	}

	logger.Info("e2e passed", zap.String("broker", cfg.Broker))
	return nil
}

// brokers returns the producer and the two subscriptions for the configured broker.
func brokers(cfg config.Config, logger *zap.Logger) (pageflow.Producer, pageflow.Subscriber, pageflow.Subscriber, func(), error) {
	if cfg.Broker == config.BrokerMemory {
		b := memory.NewBroker(cfg.Partitions, logger)
		return b, b, b, func() { _ = b.Close() }, nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	runID := uuid.NewString()
	transformSub, err := kafka.NewSubscriber(cfg.Kafka, cfg.Kafka.GroupID("e2e-transform-"+runID), logger)
	if err != nil {
		_ = producer.Close()
		return nil, nil, nil, nil, err
	}
	resultSub, err := kafka.NewSubscriber(cfg.Kafka, cfg.Kafka.GroupID("e2e-results-"+runID), logger)
	if err != nil {
		_ = transformSub.Close()
		_ = producer.Close()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		for _, closer := range []func() error{resultSub.Close, transformSub.Close, producer.Close} {
			if err := closer(); err != nil {
				logger.Error("failed to close kafka client", zap.Error(err))
			}
		}
	}

	return producer, transformSub, resultSub, cleanup, nil
}

func waitFor(ctx context.Context, cond func() bool) error {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}
