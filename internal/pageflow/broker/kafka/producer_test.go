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

func newTestProducer(t *testing.T, m *MockProducer, ackTimeout time.Duration) *StreamProducer {
	t.Helper()
	m.On("Events").Return(make(chan kafka.Event)).Maybe()

	p, err := NewStreamProducer(m, zap.NewNop(), ackTimeout, time.Second)
	require.NoError(t, err)
	return p
}

// deliver answers the delivery channel passed to Produce with the given partition error.
func deliver(partitionErr error) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		msg := args.Get(0).(*kafka.Message)
		ch := args.Get(1).(chan kafka.Event)
		reply := *msg
		reply.TopicPartition.Partition = 2
		reply.TopicPartition.Offset = 41
		reply.TopicPartition.Error = partitionErr
		go func() { ch <- &reply }()
	}
}

func TestProduceWaitsForAck(t *testing.T) {
	m := new(MockProducer)
	p := newTestProducer(t, m, time.Second)

	var sent *kafka.Message
	m.On("Produce", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(0).(*kafka.Message)
			deliver(nil)(args)
		}).
		Return(nil).Once()

	rec := pageflow.Record{
		Topic:   "PageEvents.Generated",
		Key:     []byte("P1"),
		Value:   []byte(`{"name":"P1"}`),
		Headers: map[string]string{pageflow.HeaderEventType: pageflow.EventTypePageEvent},
	}
	require.NoError(t, p.Produce(context.Background(), rec))

	require.NotNil(t, sent)
	assert.Equal(t, "PageEvents.Generated", *sent.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, sent.TopicPartition.Partition)
	assert.Equal(t, []byte("P1"), sent.Key)
	require.Len(t, sent.Headers, 1)
	assert.Equal(t, pageflow.HeaderEventType, sent.Headers[0].Key)
	m.AssertExpectations(t)
}

func TestProduceDeliveryFailure(t *testing.T) {
	m := new(MockProducer)
	p := newTestProducer(t, m, time.Second)

	deliveryErr := kafka.NewError(kafka.ErrMsgTimedOut, "message timed out", false)
	m.On("Produce", mock.Anything, mock.Anything).Run(deliver(deliveryErr)).Return(nil).Once()

	err := p.Produce(context.Background(), pageflow.Record{Topic: "t", Value: []byte("v")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deliver record to t")
}

func TestProduceEnqueueFailure(t *testing.T) {
	m := new(MockProducer)
	p := newTestProducer(t, m, time.Second)

	m.On("Produce", mock.Anything, mock.Anything).Return(errors.New("queue full")).Once()

	err := p.Produce(context.Background(), pageflow.Record{Topic: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestProduceAckTimeout(t *testing.T) {
	m := new(MockProducer)
	p := newTestProducer(t, m, 20*time.Millisecond)

	m.On("Produce", mock.Anything, mock.Anything).Return(nil).Once()

	err := p.Produce(context.Background(), pageflow.Record{Topic: "t"})
	assert.ErrorIs(t, err, ErrAckTimeout)
}

func TestProduceContextCancelled(t *testing.T) {
	m := new(MockProducer)
	p := newTestProducer(t, m, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	m.On("Produce", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil).Once()

	err := p.Produce(ctx, pageflow.Record{Topic: "t"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProduceEmptyTopic(t *testing.T) {
	m := new(MockProducer)
	p := newTestProducer(t, m, time.Second)

	assert.Error(t, p.Produce(context.Background(), pageflow.Record{}))
	m.AssertNotCalled(t, "Produce", mock.Anything, mock.Anything)
}

func TestProducerCloseFlushes(t *testing.T) {
	m := new(MockProducer)
	p := newTestProducer(t, m, time.Second)

	m.On("Flush", 1000).Return(3).Once()
	m.On("Close").Return().Once()

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3")

	assert.NoError(t, p.Close())
	m.AssertExpectations(t)
}

func TestNewStreamProducerValidates(t *testing.T) {
	_, err := NewStreamProducer(nil, zap.NewNop(), time.Second, time.Second)
	assert.Error(t, err)

	_, err = NewStreamProducer(new(MockProducer), zap.NewNop(), 0, time.Second)
	assert.Error(t, err)
}
