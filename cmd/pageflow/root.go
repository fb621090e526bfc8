package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pageflow/internal/config"
)

var (
	cfg config.Config

	brokerFlag     string
	kafkaBrokers   string
	logLevelFlag   string
	topicsFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pageflow",
	Short: "Publish, filter and consume page-visit events",
	Long: `pageflow runs a small page-visit event pipeline.

A generator publishes random page events, the transform stage forwards visits
longer than the threshold as (page, duration) records and keeps per-page window
counts, and a consumer logs what arrives. Events can also be published over HTTP.

Examples:
  # Everything in one process with the in-memory broker
  pageflow run

  # Against Kafka
  pageflow run --broker kafka --brokers localhost:9092

  # Create the topics listed in configs/topics.yaml
  pageflow topics --brokers localhost:9092`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := config.Parse()
		if err != nil {
			return err
		}

		if brokerFlag != "" {
			parsed.Broker = brokerFlag
		}
		if kafkaBrokers != "" {
			parsed.Kafka.Brokers = kafkaBrokers
		}
		if logLevelFlag != "" {
			parsed.LogLevel = logLevelFlag
		}
		if topicsFileFlag != "" {
			parsed.TopicsFile = topicsFileFlag
		}

		if err := parsed.Validate(); err != nil {
			return err
		}
		cfg = parsed

		return nil
	},
}

// Execute runs the root command until it returns or the process is signalled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&brokerFlag, "broker", "", "broker implementation: memory or kafka (overrides BROKER)")
	rootCmd.PersistentFlags().StringVar(&kafkaBrokers, "brokers", "", "Kafka bootstrap servers (overrides KAFKA_BROKERS)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&topicsFileFlag, "topics-file", "", "topic layout YAML (overrides TOPICS_FILE)")

	rootCmd.AddCommand(runCmd, generateCmd, transformCmd, consumeCmd, topicsCmd)
}
