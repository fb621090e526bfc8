package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/broker/memory"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/pageflow/tracing"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Produce(ctx context.Context, rec pageflow.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockProducer) Close() error {
	return m.Called().Error(0)
}

func mustEvent(t *testing.T, name string, duration int64) pageflow.PageEvent {
	t.Helper()
	e, err := pageflow.NewPageEvent(name, "U1", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), duration)
	require.NoError(t, err)
	return e
}

func TestPublishWritesKeyedRecord(t *testing.T) {
	broker := memory.NewBroker(4, zap.NewNop())
	p, err := NewPublisher(broker, tracing.NewNoopTracer(), zap.NewNop())
	require.NoError(t, err)
	p.newID = func() string { return "id-1" }

	e := mustEvent(t, "page1", 150)
	require.NoError(t, p.Publish(context.Background(), "in", e))

	recs := broker.Records("in")
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("page1"), recs[0].Key)
	assert.Equal(t, "id-1", recs[0].Header(pageflow.HeaderMessageID))
	assert.Equal(t, pageflow.EventTypePageEvent, recs[0].Header(pageflow.HeaderEventType))
	assert.True(t, e.Timestamp().Equal(recs[0].Timestamp))

	decoded, err := pageflow.DecodeEvent(recs[0].Value)
	require.NoError(t, err)
	assert.True(t, e.Equal(decoded))
}

func TestPublishSameEventTwice(t *testing.T) {
	broker := memory.NewBroker(1, zap.NewNop())
	p, err := NewPublisher(broker, tracing.NewNoopTracer(), zap.NewNop())
	require.NoError(t, err)

	e := mustEvent(t, "P1", 500)
	require.NoError(t, p.Publish(context.Background(), "in", e))
	require.NoError(t, p.Publish(context.Background(), "in", e))

	recs := broker.Records("in")
	require.Len(t, recs, 2)
	assert.NotEqual(t, recs[0].Header(pageflow.HeaderMessageID), recs[1].Header(pageflow.HeaderMessageID))
}

func TestPublishRejects(t *testing.T) {
	m := new(MockProducer)
	p, err := NewPublisher(m, tracing.NewNoopTracer(), zap.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, p.Publish(context.Background(), "", mustEvent(t, "P1", 1)), ErrEmptyTopic)
	assert.ErrorIs(t, p.Publish(context.Background(), "in", pageflow.PageEvent{}), pageflow.ErrInvalidEvent)
	m.AssertNotCalled(t, "Produce", mock.Anything, mock.Anything)
}

func TestPublishReportsBrokerFailure(t *testing.T) {
	m := new(MockProducer)
	p, err := NewPublisher(m, tracing.NewNoopTracer(), zap.NewNop())
	require.NoError(t, err)

	brokerErr := errors.New("broker unavailable")
	m.On("Produce", mock.Anything, mock.Anything).Return(brokerErr).Once()

	err = p.Publish(context.Background(), "in", mustEvent(t, "P1", 200))
	assert.ErrorIs(t, err, brokerErr)
	m.AssertExpectations(t)
}

func TestNewPublisherValidates(t *testing.T) {
	_, err := NewPublisher(nil, tracing.NewNoopTracer(), zap.NewNop())
	assert.Error(t, err)
}

func TestDecoratedPublisher(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())
	tracer := tracing.NewTracerFromProvider(tp, "test")

	broker := memory.NewBroker(1, zap.NewNop())
	base, err := NewPublisher(broker, tracer, zap.NewNop())
	require.NoError(t, err)

	registry := metrics.NewRegistry()
	p := NewTracedPublisher(NewMetricsPublisher(base, registry), tracer)

	require.NoError(t, p.Publish(context.Background(), "in", mustEvent(t, "P2", 700)))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "publisher.publish", spans[0].Name())

	recs := broker.Records("in")
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Headers, "traceparent")

	count, err := testutil.GatherAndCount(registry.Gatherer(), "pageflow_publisher_publish_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
