package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/api"
	"pageflow/internal/config"
	"pageflow/internal/couchbase"
	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/broker/kafka"
	"pageflow/internal/pageflow/broker/memory"
	"pageflow/internal/pageflow/consumer"
	"pageflow/internal/pageflow/generator"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/pageflow/publisher"
	"pageflow/internal/pageflow/tracing"
	"pageflow/internal/pageflow/transform"
	"pageflow/internal/pageflow/window"
)

// task is one long-running component; it returns when ctx is done.
type task func(ctx context.Context) error

// app owns the shared infrastructure of one process.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *metrics.Registry
	tracer   *tracing.Tracer

	memory  *memory.Broker
	checks  []metrics.ReadyFunc
	closers []func() error
}

func newApp(cfg config.Config) (*app, error) {
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	registry.SetSystemInfo(version, buildTime)

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		tracer:   tracer,
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tracingCleanup(ctx)
	})

	switch cfg.Broker {
	case config.BrokerMemory:
		a.memory = memory.NewBroker(cfg.Partitions, logger)
		a.checks = append(a.checks, a.memory.Ping)
		a.closers = append(a.closers, a.memory.Close)
	case config.BrokerKafka:
		admin, err := kafka.NewAdmin(cfg.Kafka, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.checks = append(a.checks, admin.Ping)
		a.closers = append(a.closers, func() error {
			admin.Close()
			return nil
		})
	}

	logger.Info("pageflow starting",
		zap.String("version", version),
		zap.String("broker", cfg.Broker),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)

	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) producer() (pageflow.Producer, error) {
	if a.memory != nil {
		return a.memory, nil
	}

	p, err := kafka.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)

	return p, nil
}

func (a *app) subscriber(component string) (pageflow.Subscriber, error) {
	if a.memory != nil {
		return a.memory, nil
	}

	s, err := kafka.NewSubscriber(a.cfg.Kafka, a.cfg.Kafka.GroupID(component), a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)

	return s, nil
}

// publisher returns the decorated publisher: traced -> metrics -> publisher.
func (a *app) publisher() (pageflow.Publisher, error) {
	producer, err := a.producer()
	if err != nil {
		return nil, err
	}

	base, err := publisher.NewPublisher(producer, a.tracer, a.logger)
	if err != nil {
		return nil, err
	}

	return publisher.NewTracedPublisher(publisher.NewMetricsPublisher(base, a.registry), a.tracer), nil
}

// windowStore returns nil when windowed counting is disabled.
func (a *app) windowStore() (window.Store, error) {
	var (
		store  window.Store
		system string
	)

	switch a.cfg.Transform.WindowStore {
	case config.StoreNone:
		return nil, nil
	case config.StoreMemory:
		store, system = window.NewMemoryStore(), "memory"
	case config.StoreCouchbase:
		cluster, bucket, err := couchbase.Connect(a.cfg.Couchbase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to couchbase: %w", err)
		}

		windows, err := window.NewWindowsCollection(cluster, bucket, a.cfg.Couchbase.Scope)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, windows.Close)

		transactions, err := couchbase.NewTransactions(cluster, a.cfg.Couchbase.KVTimeout)
		if err != nil {
			return nil, err
		}

		cb, err := window.NewCouchbaseStore(windows, transactions)
		if err != nil {
			return nil, err
		}
		a.checks = append(a.checks, cb.Ping)
		store, system = cb, "couchbase"
	default:
		return nil, fmt.Errorf("unknown window store %q", a.cfg.Transform.WindowStore)
	}

	return window.NewTracedStore(window.NewMetricsStore(store, a.registry), a.tracer, system), nil
}

func (a *app) newGenerator(bounds generator.Bounds) (*generator.Generator, error) {
	opts := generator.Options{
		Pages:  a.cfg.Generator.Pages,
		Users:  a.cfg.Generator.Users,
		Bounds: bounds,
	}
	if seed := a.cfg.Generator.Seed; seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(seed, seed))
	}

	return generator.New(opts)
}

func (a *app) generatorTask(topic string) (task, error) {
	gen, err := a.newGenerator(a.cfg.Generator.PeriodicBounds())
	if err != nil {
		return nil, err
	}

	pub, err := a.publisher()
	if err != nil {
		return nil, err
	}

	r, err := generator.NewRunner(gen, pub, a.registry, a.logger, topic, a.cfg.Generator.Interval)
	if err != nil {
		return nil, err
	}

	return r.Run, nil
}

// transformTask wires the stage and, when a window store is configured, the windowed counter.
func (a *app) transformTask(store window.Store) (task, error) {
	stage, err := transform.NewStage(a.cfg.Transform.Threshold, a.cfg.Topics.Durations)
	if err != nil {
		return nil, err
	}

	sub, err := a.subscriber("transform")
	if err != nil {
		return nil, err
	}
	producer, err := a.producer()
	if err != nil {
		return nil, err
	}

	r, err := transform.NewRunner(stage, sub, producer, a.registry, a.tracer, a.logger, a.cfg.Topics.Generated)
	if err != nil {
		return nil, err
	}

	if store != nil {
		counter, err := transform.NewWindowedCounter(store, producer, a.registry, a.logger, a.cfg.Topics.WindowCounts, a.cfg.Transform.WindowSize)
		if err != nil {
			return nil, err
		}
		r.WithAggregator(counter)
	}

	return r.Run, nil
}

// consumerTasks starts one logging consumer per topic.
func (a *app) consumerTasks(topics []string) ([]task, error) {
	if len(topics) == 0 {
		return nil, errors.New("no topics to consume")
	}

	handler := consumer.NewTracedHandler(
		consumer.NewMetricsHandler(consumer.NewLogHandler(a.logger), a.registry),
		a.tracer,
	)

	tasks := make([]task, 0, len(topics))
	for _, topic := range topics {
		sub, err := a.subscriber("consumer")
		if err != nil {
			return nil, err
		}

		c, err := consumer.NewConsumer(sub, handler, a.registry, a.logger)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, func(ctx context.Context) error {
			return c.Consume(ctx, topic)
		})
	}

	return tasks, nil
}

func (a *app) apiTask(store window.Store) (task, error) {
	gen, err := a.newGenerator(a.cfg.Generator.HTTPBounds())
	if err != nil {
		return nil, err
	}

	pub, err := a.publisher()
	if err != nil {
		return nil, err
	}

	h, err := api.NewHandlers(pub, gen, store, a.cfg.HTTP.PublishTimeout, a.logger)
	if err != nil {
		return nil, err
	}

	gin.SetMode(a.cfg.HTTP.Mode)
	server := api.NewServer(a.cfg.HTTP, api.NewRouter(h, a.registry, a.logger), a.logger)

	return server.Start, nil
}

func (a *app) metricsTask() task {
	server := metrics.NewServer(a.cfg.Metrics, a.registry, a.ready, a.logger)
	return server.Start
}

func (a *app) ready(ctx context.Context) error {
	for _, check := range a.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}
