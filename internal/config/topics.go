package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pageflow/internal/pageflow/broker/kafka"
)

type topicsFile struct {
	Topics []topicEntry `yaml:"topics"`
}

type topicEntry struct {
	Name              string            `yaml:"name"`
	Partitions        int               `yaml:"partitions"`
	ReplicationFactor int               `yaml:"replication_factor"`
	Config            map[string]string `yaml:"config"`
}

// LoadTopics reads topic specifications from a YAML file. Partitions and
// replication factor default to 1.
func LoadTopics(path string) ([]kafka.TopicSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics file %s: %w", path, err)
	}

	var file topicsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse topics file %s: %w", path, err)
	}
	if len(file.Topics) == 0 {
		return nil, fmt.Errorf("topics file %s defines no topics", path)
	}

	seen := make(map[string]bool, len(file.Topics))
	specs := make([]kafka.TopicSpec, 0, len(file.Topics))
	for i, t := range file.Topics {
		if t.Name == "" {
			return nil, fmt.Errorf("topic %d in %s has no name", i, path)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("topic %s is defined twice in %s", t.Name, path)
		}
		seen[t.Name] = true

		spec := kafka.TopicSpec{
			Name:              t.Name,
			Partitions:        max(t.Partitions, 1),
			ReplicationFactor: max(t.ReplicationFactor, 1),
			Config:            t.Config,
		}
		specs = append(specs, spec)
	}

	return specs, nil
}

// TopicsOrDefault loads the topic file, falling back to the default layout when
// the file does not exist.
func (c Config) TopicsOrDefault() ([]kafka.TopicSpec, error) {
	specs, err := LoadTopics(c.TopicsFile)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultTopics(c.Topics, c.Partitions), nil
	}
	return specs, err
}
