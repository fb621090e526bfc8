package kafka

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"pageflow/internal/validator"
)

// TopicSpec describes a topic to create.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	Config            map[string]string
}

// TopicsResult lists what EnsureTopics did per topic.
type TopicsResult struct {
	Created  []string
	Existing []string
}

type Admin struct {
	client  AdminClient
	logger  *zap.Logger
	timeout time.Duration
}

func NewAdmin(cfg Config, logger *zap.Logger) (*Admin, error) {
	client, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         cfg.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka admin client: %w", err)
	}

	return NewAdminFromClient(client, logger, 30*time.Second)
}

func NewAdminFromClient(client AdminClient, logger *zap.Logger, timeout time.Duration) (*Admin, error) {
	a := Admin{client: client, logger: logger, timeout: timeout}
	if err := validator.Validate("kafka admin", a.client, a.logger, a.timeout); err != nil {
		return nil, fmt.Errorf("failed to validate kafka admin deps: %w", err)
	}
	a.logger = a.logger.Named("kafka-admin")

	return &a, nil
}

// EnsureTopics creates every topic that does not exist yet. A topic that already
// exists counts as success; any other per-topic failure fails the call after all
// results have been logged.
func (a *Admin) EnsureTopics(ctx context.Context, specs []TopicSpec) (TopicsResult, error) {
	var result TopicsResult
	if len(specs) == 0 {
		return result, nil
	}

	sorted := append([]TopicSpec(nil), specs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	topics := make([]kafka.TopicSpecification, 0, len(sorted))
	for _, s := range sorted {
		replication := s.ReplicationFactor
		if replication < 1 {
			replication = 1
		}
		topics = append(topics, kafka.TopicSpecification{
			Topic:             s.Name,
			NumPartitions:     s.Partitions,
			ReplicationFactor: replication,
			Config:            s.Config,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results, err := a.client.CreateTopics(ctx, topics, kafka.SetAdminOperationTimeout(a.timeout))
	if err != nil {
		return result, fmt.Errorf("failed to create topics: %w", err)
	}

	var failed []string
	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrNoError:
			a.logger.Info("created topic", zap.String("topic", res.Topic))
			result.Created = append(result.Created, res.Topic)
		case kafka.ErrTopicAlreadyExists:
			a.logger.Info("topic already exists", zap.String("topic", res.Topic))
			result.Existing = append(result.Existing, res.Topic)
		default:
			a.logger.Error("failed to create topic", zap.String("topic", res.Topic), zap.Error(res.Error))
			failed = append(failed, res.Topic)
		}
	}

	if len(failed) > 0 {
		return result, fmt.Errorf("failed to create %d topic(s): %v", len(failed), failed)
	}

	return result, nil
}

// Ping fetches cluster metadata to check the brokers are reachable.
func (a *Admin) Ping(ctx context.Context) error {
	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return fmt.Errorf("failed to fetch kafka metadata: %w", context.DeadlineExceeded)
	}

	if _, err := a.client.GetMetadata(nil, false, int(timeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to fetch kafka metadata: %w", err)
	}
	return nil
}

func (a *Admin) Close() {
	a.client.Close()
}
