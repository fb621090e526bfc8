// Package memory provides an in-process broker with per-topic partitioned
// append-only logs. It implements both pageflow.Producer and pageflow.Subscriber.
package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pageflow/internal/pageflow"
)

// ErrClosed is returned when producing to a closed broker.
var ErrClosed = errors.New("broker closed")

// Broker keeps every record in memory. Subscribers read each partition from the
// earliest offset, so a subscription started after a publish still sees the record.
type Broker struct {
	mu         sync.Mutex
	partitions int
	topics     map[string][][]pageflow.Record
	notify     chan struct{}
	closed     bool
	now        func() time.Time
	logger     *zap.Logger
}

// NewBroker creates a broker with the given number of partitions per topic.
func NewBroker(partitions int, logger *zap.Logger) *Broker {
	if partitions < 1 {
		partitions = 1
	}

	return &Broker{
		partitions: partitions,
		topics:     make(map[string][][]pageflow.Record),
		notify:     make(chan struct{}),
		now:        time.Now,
		logger:     logger.Named("memory-broker"),
	}
}

// Produce appends the record to the partition chosen by its key. The ack is immediate.
func (b *Broker) Produce(ctx context.Context, rec pageflow.Record) error {
	if rec.Topic == "" {
		return errors.New("failed to produce record: empty topic")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to produce record to %s: %w", rec.Topic, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	logs, ok := b.topics[rec.Topic]
	if !ok {
		logs = make([][]pageflow.Record, b.partitions)
		b.topics[rec.Topic] = logs
	}

	p := partitionFor(rec.Key, b.partitions)
	rec.Partition = int32(p)
	rec.Offset = int64(len(logs[p]))
	if rec.Timestamp.IsZero() {
		rec.Timestamp = b.now().UTC()
	}
	rec.Key = clone(rec.Key)
	rec.Value = clone(rec.Value)
	rec.Headers = cloneHeaders(rec.Headers)
	logs[p] = append(logs[p], rec)

	close(b.notify)
	b.notify = make(chan struct{})

	return nil
}

// Subscribe delivers records from the topics until ctx is done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context, topics []string, h pageflow.RecordHandler) error {
	if len(topics) == 0 {
		return errors.New("failed to subscribe: no topics")
	}

	logger := b.logger.With(zap.Strings("topics", topics))
	offsets := make(map[string][]int, len(topics))
	for _, topic := range topics {
		offsets[topic] = make([]int, b.partitions)
	}

	for {
		batch, wait, closed := b.pending(topics, offsets)
		if len(batch) == 0 {
			if closed {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-wait:
			}
			continue
		}

		for _, rec := range batch {
			if ctx.Err() != nil {
				return nil
			}
			if err := h(ctx, rec); err != nil {
				logger.Error("failed to handle record",
					zap.String("topic", rec.Topic),
					zap.Int32("partition", rec.Partition),
					zap.Int64("offset", rec.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

// pending collects undelivered records and advances the offsets. Records of one
// partition stay in offset order.
func (b *Broker) pending(topics []string, offsets map[string][]int) ([]pageflow.Record, <-chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var batch []pageflow.Record
	for _, topic := range topics {
		logs := b.topics[topic]
		for p := range logs {
			from := offsets[topic][p]
			for _, rec := range logs[p][from:] {
				rec.Headers = cloneHeaders(rec.Headers)
				batch = append(batch, rec)
			}
			offsets[topic][p] = len(logs[p])
		}
	}

	return batch, b.notify, b.closed
}

// Records returns a copy of everything written to the topic, partition by partition.
func (b *Broker) Records(topic string) []pageflow.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []pageflow.Record
	for _, log := range b.topics[topic] {
		out = append(out, log...)
	}
	return out
}

// Close stops all subscriptions once they drain and rejects further produces.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.notify)
	b.notify = make(chan struct{})

	return nil
}

// Ping reports whether the broker still accepts records.
func (b *Broker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	return nil
}

func partitionFor(key []byte, partitions int) int {
	if partitions == 1 || len(key) == 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(partitions))
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
