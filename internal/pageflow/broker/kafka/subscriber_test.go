package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
)

func testMessage(topic string, offset int64, key, value string) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 1, Offset: kafka.Offset(offset)},
		Key:            []byte(key),
		Value:          []byte(value),
		Headers:        []kafka.Header{{Key: "traceparent", Value: []byte("tp")}},
		Timestamp:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

var errPollTimeout = kafka.NewError(kafka.ErrTimedOut, "timed out", false)

func TestSubscribeDeliversAndStoresOffsets(t *testing.T) {
	m := new(MockConsumer)
	s, err := NewStreamSubscriber(m, zap.NewNop(), 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := testMessage("in", 7, "P1", "a")
	second := testMessage("in", 8, "P2", "b")

	m.On("SubscribeTopics", []string{"in"}, mock.Anything).Return(nil).Once()
	m.On("ReadMessage", 10*time.Millisecond).Return(first, nil).Once()
	m.On("ReadMessage", 10*time.Millisecond).Return((*kafka.Message)(nil), errPollTimeout).Once()
	m.On("ReadMessage", 10*time.Millisecond).Return(second, nil).Once()
	m.On("ReadMessage", 10*time.Millisecond).Run(func(mock.Arguments) { cancel() }).Return((*kafka.Message)(nil), errPollTimeout)
	m.On("StoreMessage", first).Return(nil).Once()
	m.On("StoreMessage", second).Return(errors.New("store failed")).Once()

	var got []pageflow.Record
	err = s.Subscribe(ctx, []string{"in"}, func(_ context.Context, rec pageflow.Record) error {
		got = append(got, rec)
		if rec.Offset == 8 {
			return errors.New("handler failed")
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "in", got[0].Topic)
	assert.Equal(t, int32(1), got[0].Partition)
	assert.Equal(t, int64(7), got[0].Offset)
	assert.Equal(t, []byte("P1"), got[0].Key)
	assert.Equal(t, "tp", got[0].Header("traceparent"))
	assert.Equal(t, int64(8), got[1].Offset)
	m.AssertExpectations(t)
}

func TestSubscribeFatalError(t *testing.T) {
	m := new(MockConsumer)
	s, err := NewStreamSubscriber(m, zap.NewNop(), time.Millisecond)
	require.NoError(t, err)

	m.On("SubscribeTopics", mock.Anything, mock.Anything).Return(nil)
	m.On("ReadMessage", mock.Anything).Return((*kafka.Message)(nil), kafka.NewError(kafka.ErrFatal, "fenced", true))

	err = s.Subscribe(context.Background(), []string{"in"}, func(context.Context, pageflow.Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal")
}

func TestSubscribeTransientErrorContinues(t *testing.T) {
	m := new(MockConsumer)
	s, err := NewStreamSubscriber(m, zap.NewNop(), time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.On("SubscribeTopics", mock.Anything, mock.Anything).Return(nil)
	m.On("ReadMessage", mock.Anything).Return((*kafka.Message)(nil), kafka.NewError(kafka.ErrTransport, "broker down", false)).Once()
	m.On("ReadMessage", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return((*kafka.Message)(nil), errPollTimeout)

	assert.NoError(t, s.Subscribe(ctx, []string{"in"}, func(context.Context, pageflow.Record) error { return nil }))
}

func TestSubscribeTopicsFailure(t *testing.T) {
	m := new(MockConsumer)
	s, err := NewStreamSubscriber(m, zap.NewNop(), time.Millisecond)
	require.NoError(t, err)

	m.On("SubscribeTopics", mock.Anything, mock.Anything).Return(errors.New("unknown topic"))

	err = s.Subscribe(context.Background(), []string{"in"}, nil)
	assert.Error(t, err)
}

func TestSubscriberClose(t *testing.T) {
	m := new(MockConsumer)
	s, err := NewStreamSubscriber(m, zap.NewNop(), time.Millisecond)
	require.NoError(t, err)

	m.On("Close").Return(errors.New("already closed")).Once()
	assert.Error(t, s.Close())
}

func TestToMessageFromMessage(t *testing.T) {
	rec := pageflow.Record{
		Topic:   "out",
		Key:     []byte("P1"),
		Value:   pageflow.EncodeDuration(150),
		Headers: map[string]string{"a": "1"},
	}

	msg := toMessage(rec)
	msg.TopicPartition.Partition = 0
	msg.TopicPartition.Offset = 3

	back := fromMessage(msg)
	assert.Equal(t, rec.Topic, back.Topic)
	assert.Equal(t, rec.Key, back.Key)
	assert.Equal(t, rec.Value, back.Value)
	assert.Equal(t, rec.Headers, back.Headers)
	assert.Equal(t, int64(3), back.Offset)
}

func TestGroupID(t *testing.T) {
	assert.Equal(t, "pageflow-transform", Config{GroupPrefix: "pageflow"}.GroupID("transform"))
	assert.Equal(t, "transform", Config{}.GroupID("transform"))
}
