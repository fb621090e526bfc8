package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pageflow/internal/config"
	"pageflow/internal/pageflow/broker/kafka"
)

var (
	generateTopic    string
	generateInterval time.Duration
	transformThresh  int64
	windowStoreFlag  string
	consumeTopics    []string
	dryRun           bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the API, generator, transform and consumers in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) ([]task, error) {
			store, err := a.windowStore()
			if err != nil {
				return nil, err
			}

			gen, err := a.generatorTask(a.cfg.Topics.Generated)
			if err != nil {
				return nil, err
			}
			tr, err := a.transformTask(store)
			if err != nil {
				return nil, err
			}
			consumers, err := a.consumerTasks(a.cfg.Consumer.Topics)
			if err != nil {
				return nil, err
			}
			httpAPI, err := a.apiTask(store)
			if err != nil {
				return nil, err
			}

			return append([]task{a.metricsTask(), httpAPI, gen, tr}, consumers...), nil
		})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Publish a random page event on every tick",
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateInterval > 0 {
			cfg.Generator.Interval = generateInterval
		}
		topic := generateTopic
		if topic == "" {
			topic = cfg.Topics.Generated
		}

		return withApp(cmd.Context(), func(a *app) ([]task, error) {
			gen, err := a.generatorTask(topic)
			if err != nil {
				return nil, err
			}
			return []task{a.metricsTask(), gen}, nil
		})
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Forward long visits as (page, duration) records and count them per window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("threshold") {
			cfg.Transform.Threshold = transformThresh
		}
		if windowStoreFlag != "" {
			cfg.Transform.WindowStore = windowStoreFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app) ([]task, error) {
			store, err := a.windowStore()
			if err != nil {
				return nil, err
			}
			tr, err := a.transformTask(store)
			if err != nil {
				return nil, err
			}
			return []task{a.metricsTask(), tr}, nil
		})
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Log every record of the given topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := consumeTopics
		if len(topics) == 0 {
			topics = cfg.Consumer.Topics
		}

		return withApp(cmd.Context(), func(a *app) ([]task, error) {
			consumers, err := a.consumerTasks(topics)
			if err != nil {
				return nil, err
			}
			return append([]task{a.metricsTask()}, consumers...), nil
		})
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Create the topics listed in the topics file",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := cfg.TopicsOrDefault()
		if err != nil {
			return err
		}

		if dryRun {
			for _, s := range specs {
				fmt.Printf("%s partitions=%d replication=%d config=%v\n", s.Name, s.Partitions, s.ReplicationFactor, s.Config)
			}
			return nil
		}

		if cfg.Broker != config.BrokerKafka {
			return fmt.Errorf("topics can only be created on kafka, broker is %q", cfg.Broker)
		}

		logger, err := config.NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		admin, err := kafka.NewAdmin(cfg.Kafka, logger)
		if err != nil {
			return err
		}
		defer admin.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		result, err := admin.EnsureTopics(ctx, specs)
		if err != nil {
			return err
		}

		logger.Info("topics ready",
			zap.Strings("created", result.Created),
			zap.Strings("existing", result.Existing),
		)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateTopic, "topic", "", "topic to publish to (default TOPIC_GENERATED)")
	generateCmd.Flags().DurationVar(&generateInterval, "interval", 0, "time between events (default GENERATOR_INTERVAL)")

	transformCmd.Flags().Int64Var(&transformThresh, "threshold", 100, "drop visits with a duration at or below this")
	transformCmd.Flags().StringVar(&windowStoreFlag, "window-store", "", "window store: none, memory or couchbase")

	consumeCmd.Flags().StringSliceVarP(&consumeTopics, "topics", "t", nil, "topics to consume (default CONSUMER_TOPICS)")

	topicsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the topics instead of creating them")
}

// withApp builds the process infrastructure, starts the tasks returned by build
// and waits for all of them. The first failing task cancels the rest.
func withApp(ctx context.Context, build func(a *app) ([]task, error)) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	tasks, err := build(a)
	if err != nil {
		a.logger.Error("failed to start", zap.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			return t(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Error("pageflow stopped with error", zap.Error(err))
		return err
	}

	a.logger.Info("pageflow stopped")
	return nil
}

