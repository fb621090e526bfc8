package window

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/pageflow/tracing"
)

func TestBounds(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 3, 27, 500_000_000, time.UTC)

	start, end := Bounds(ts, time.Minute)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 3, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 4, 0, 0, time.UTC), end)

	start, _ = Bounds(ts, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), start)

	start, end = Bounds(start, time.Minute)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), start, "window start belongs to its own window")
	assert.Equal(t, time.Minute, end.Sub(start))
}

func TestKey(t *testing.T) {
	start := time.UnixMilli(1714557600000)
	assert.Equal(t, "window::P1::1714557600000", Key("P1", start))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, "P1", start)
	assert.ErrorIs(t, err, ErrNotFound)

	w, err := s.Increment(ctx, "P1", start, time.Minute, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)
	assert.Equal(t, int64(150), w.TotalDuration)
	assert.Equal(t, start.Add(time.Minute), w.End)

	w, err = s.Increment(ctx, "P1", start, time.Minute, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Count)
	assert.Equal(t, int64(400), w.TotalDuration)

	_, err = s.Increment(ctx, "P1", start.Add(time.Minute), time.Minute, 10)
	require.NoError(t, err)
	_, err = s.Increment(ctx, "P2", start, time.Minute, 10)
	require.NoError(t, err)

	got, err := s.Get(ctx, "P1", start)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	list, err := s.List(ctx, "P1", start)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Start.Before(list[1].Start))

	list, err = s.List(ctx, "P1", start.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	s := NewMemoryStore()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(context.Background(), "P1", start, time.Minute, 2)
		}()
	}
	wg.Wait()

	w, err := s.Get(context.Background(), "P1", start)
	require.NoError(t, err)
	assert.Equal(t, int64(50), w.Count)
	assert.Equal(t, int64(100), w.TotalDuration)
}

func TestDecoratedStore(t *testing.T) {
	store := NewTracedStore(NewMetricsStore(NewMemoryStore(), metrics.NewRegistry()), tracing.NewNoopTracer(), "memory")
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	w, err := store.Increment(context.Background(), "P1", start, time.Minute, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)

	_, err = store.Get(context.Background(), "P2", start)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(context.Background(), "P1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWindowCount(t *testing.T) {
	w := newWindow("P1", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), time.Minute)
	w.Count = 4
	w.TotalDuration = 1000

	c := w.WindowCount()
	assert.Equal(t, "P1", c.Name)
	assert.Equal(t, int64(4), c.Count)
	assert.Equal(t, time.Minute, c.WindowEnd.Sub(c.WindowStart))
}
