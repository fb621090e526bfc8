// Package kafka adapts confluent-kafka-go clients to the pageflow Producer and
// Subscriber interfaces.
package kafka

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Config holds broker connection settings shared by producers, subscribers and the admin client.
type Config struct {
	Brokers         string            `env:"BROKERS" envDefault:"localhost:9092"`
	ClientID        string            `env:"CLIENT_ID" envDefault:"pageflow"`
	GroupPrefix     string            `env:"GROUP_PREFIX" envDefault:"pageflow"`
	AutoOffsetReset string            `env:"AUTO_OFFSET_RESET" envDefault:"earliest"`
	AckTimeout      time.Duration     `env:"ACK_TIMEOUT" envDefault:"30s"`
	PollTimeout     time.Duration     `env:"POLL_TIMEOUT" envDefault:"1s"`
	FlushTimeout    time.Duration     `env:"FLUSH_TIMEOUT" envDefault:"5s"`
	ProducerConfig  map[string]string `env:"PRODUCER_CONFIG"`
	ConsumerConfig  map[string]string `env:"CONSUMER_CONFIG"`
}

// GroupID returns the consumer group for a component, e.g. "pageflow-transform".
func (c Config) GroupID(component string) string {
	if c.GroupPrefix == "" {
		return component
	}
	return c.GroupPrefix + "-" + component
}

// Producer is the subset of *kafka.Producer used here.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// Consumer is the subset of *kafka.Consumer used here.
type Consumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	StoreMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Close() error
}

// AdminClient is the subset of *kafka.AdminClient used here.
type AdminClient interface {
	CreateTopics(ctx context.Context, topics []kafka.TopicSpecification, options ...kafka.CreateTopicsAdminOption) ([]kafka.TopicResult, error)
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	Close()
}

var (
	_ Producer    = (*kafka.Producer)(nil)
	_ Consumer    = (*kafka.Consumer)(nil)
	_ AdminClient = (*kafka.AdminClient)(nil)
)

func producerConfigMap(cfg Config) *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         cfg.ClientID,
		"acks":              "all",
	}
	for k, v := range cfg.ProducerConfig {
		cm[k] = v
	}
	return &cm
}

func consumerConfigMap(cfg Config, groupID string) *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers":        cfg.Brokers,
		"client.id":                cfg.ClientID,
		"group.id":                 groupID,
		"auto.offset.reset":        cfg.AutoOffsetReset,
		"enable.auto.commit":       true,
		"enable.auto.offset.store": false,
	}
	for k, v := range cfg.ConsumerConfig {
		cm[k] = v
	}
	return &cm
}
