package generator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/metrics"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestNextStaysInBounds(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
	}{
		{name: "periodic", bounds: PeriodicBounds},
		{name: "http", bounds: HTTPBounds},
		{name: "narrow", bounds: Bounds{Min: 5, Max: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(Options{Bounds: tt.bounds, Rand: seeded(42)})
			require.NoError(t, err)

			for i := 0; i < 10000; i++ {
				e := g.Next()
				assert.GreaterOrEqual(t, e.Duration(), tt.bounds.Min)
				assert.Less(t, e.Duration(), tt.bounds.Max)
				assert.Contains(t, DefaultPages, e.Name())
				assert.Contains(t, DefaultUsers, e.User())
			}
		})
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	a, err := New(Options{Rand: seeded(7), Now: clock})
	require.NoError(t, err)
	b, err := New(Options{Rand: seeded(7), Now: clock})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		ea, eb := a.Next(), b.Next()
		assert.True(t, ea.Equal(eb), "draw %d: %s != %s", i, ea, eb)
		assert.True(t, now.Equal(ea.Timestamp()))
	}
}

func TestNewEventKeepsName(t *testing.T) {
	g, err := New(Options{Bounds: HTTPBounds, Rand: seeded(1)})
	require.NoError(t, err)

	e := g.NewEvent("checkout")
	assert.Equal(t, "checkout", e.Name())
	assert.Less(t, e.Duration(), int64(1010))

	assert.Equal(t, pageflow.PageEvent{}, g.NewEvent(""))
}

func TestNewRejectsBadBounds(t *testing.T) {
	for _, b := range []Bounds{{Min: 10, Max: 10}, {Min: 20, Max: 10}, {Min: -1, Max: 10}} {
		_, err := New(Options{Bounds: b})
		assert.Error(t, err, "bounds %+v", b)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []pageflow.PageEvent
	fail   int
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e pageflow.PageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestRunnerContinuesAfterPublishFailure(t *testing.T) {
	g, err := New(Options{Rand: seeded(3)})
	require.NoError(t, err)

	pub := &recordingPublisher{fail: 2}
	r, err := NewRunner(g, pub, metrics.NewRegistry(), zap.NewNop(), "in", time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestNewRunnerValidates(t *testing.T) {
	g, err := New(Options{})
	require.NoError(t, err)

	_, err = NewRunner(g, &recordingPublisher{}, metrics.NewRegistry(), zap.NewNop(), "", time.Second)
	assert.Error(t, err)

	_, err = NewRunner(g, &recordingPublisher{}, metrics.NewRegistry(), zap.NewNop(), "in", 0)
	assert.Error(t, err)
}
