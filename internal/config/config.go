// Package config loads process configuration from the environment and the
// topic layout from YAML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"pageflow/internal/api"
	"pageflow/internal/couchbase"
	"pageflow/internal/pageflow/broker/kafka"
	"pageflow/internal/pageflow/generator"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/pageflow/tracing"
)

const (
	BrokerMemory = "memory"
	BrokerKafka  = "kafka"

	StoreNone      = "none"
	StoreMemory    = "memory"
	StoreCouchbase = "couchbase"
)

type Config struct {
	Broker     string `env:"BROKER" envDefault:"memory"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	TopicsFile string `env:"TOPICS_FILE" envDefault:"configs/topics.yaml"`
	Partitions int    `env:"MEMORY_PARTITIONS" envDefault:"3"`

	Topics    Topics               `envPrefix:"TOPIC_"`
	Kafka     kafka.Config         `envPrefix:"KAFKA_"`
	Couchbase couchbase.Config     `envPrefix:"COUCHBASE_"`
	Tracing   tracing.Config       `envPrefix:"TRACING_"`
	Metrics   metrics.ServerConfig `envPrefix:"METRICS_"`
	HTTP      api.Config           `envPrefix:"HTTP_"`
	Generator Generator            `envPrefix:"GENERATOR_"`
	Transform Transform            `envPrefix:"TRANSFORM_"`
	Consumer  Consumer             `envPrefix:"CONSUMER_"`
}

type Topics struct {
	Generated    string `env:"GENERATED" envDefault:"PageEvents.Generated"`
	Durations    string `env:"DURATIONS" envDefault:"PageEvents.Durations"`
	WindowCounts string `env:"WINDOW_COUNTS" envDefault:"PageEvents.WindowCounts"`
	Console      string `env:"CONSOLE" envDefault:"PageEvents.Console"`
}

type Generator struct {
	Interval time.Duration    `env:"INTERVAL" envDefault:"1s"`
	Seed     uint64           `env:"SEED"`
	Pages    []string         `env:"PAGES" envSeparator:","`
	Users    []string         `env:"USERS" envSeparator:","`
	Periodic generator.Bounds `envPrefix:"PERIODIC_"`
	HTTP     generator.Bounds `envPrefix:"HTTP_"`
}

type Transform struct {
	Threshold   int64         `env:"THRESHOLD" envDefault:"100"`
	WindowSize  time.Duration `env:"WINDOW_SIZE" envDefault:"1m"`
	WindowStore string        `env:"WINDOW_STORE" envDefault:"memory"`
}

type Consumer struct {
	// Topics consumed by the logging consumer, one subscription each.
	Topics []string `env:"TOPICS" envSeparator:"," envDefault:"PageEvents.Durations,PageEvents.Console"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse reads the environment without validating, for callers that apply
// overrides first.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Broker {
	case BrokerMemory, BrokerKafka:
	default:
		errs = append(errs, fmt.Errorf("unknown broker %q", c.Broker))
	}
	if c.Broker == BrokerKafka && c.Kafka.Brokers == "" {
		errs = append(errs, errors.New("kafka brokers are required"))
	}

	switch c.Transform.WindowStore {
	case StoreNone, StoreMemory, StoreCouchbase:
	default:
		errs = append(errs, fmt.Errorf("unknown window store %q", c.Transform.WindowStore))
	}
	if c.Transform.Threshold < 0 {
		errs = append(errs, fmt.Errorf("transform threshold %d must not be negative", c.Transform.Threshold))
	}
	if c.Transform.WindowSize <= 0 {
		errs = append(errs, errors.New("transform window size must be positive"))
	}

	if c.Generator.Interval <= 0 {
		errs = append(errs, errors.New("generator interval must be positive"))
	}
	for _, b := range []generator.Bounds{c.Generator.Periodic, c.Generator.HTTP} {
		if b == (generator.Bounds{}) {
			continue
		}
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	for name, topic := range map[string]string{
		"generated":     c.Topics.Generated,
		"durations":     c.Topics.Durations,
		"window counts": c.Topics.WindowCounts,
		"console":       c.Topics.Console,
	} {
		if strings.TrimSpace(topic) == "" {
			errs = append(errs, fmt.Errorf("%s topic must not be empty", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// PeriodicBounds returns the configured bounds of the timer-driven generator.
func (g Generator) PeriodicBounds() generator.Bounds {
	if g.Periodic == (generator.Bounds{}) {
		return generator.PeriodicBounds
	}
	return g.Periodic
}

// HTTPBounds returns the configured bounds of the HTTP publish path.
func (g Generator) HTTPBounds() generator.Bounds {
	if g.HTTP == (generator.Bounds{}) {
		return generator.HTTPBounds
	}
	return g.HTTP
}

// DefaultTopics is the topic layout used when no topic file is present.
func DefaultTopics(t Topics, partitions int) []kafka.TopicSpec {
	names := []string{t.Generated, t.Durations, t.WindowCounts, t.Console}
	specs := make([]kafka.TopicSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, kafka.TopicSpec{Name: name, Partitions: partitions, ReplicationFactor: 1})
	}
	return specs
}
