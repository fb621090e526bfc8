package kafka

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"pageflow/internal/pageflow"
)

func toMessage(rec pageflow.Record) *kafka.Message {
	topic := rec.Topic
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            rec.Key,
		Value:          rec.Value,
		Timestamp:      rec.Timestamp,
	}

	for k, v := range rec.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return msg
}

func fromMessage(msg *kafka.Message) pageflow.Record {
	rec := pageflow.Record{
		Partition: msg.TopicPartition.Partition,
		Offset:    int64(msg.TopicPartition.Offset),
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	if msg.TopicPartition.Topic != nil {
		rec.Topic = *msg.TopicPartition.Topic
	}

	if len(msg.Headers) > 0 {
		rec.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			rec.Headers[h.Key] = string(h.Value)
		}
	}

	return rec
}
