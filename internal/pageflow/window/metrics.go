package window

import (
	"context"
	"time"

	"pageflow/internal/pageflow/metrics"
)

// MetricsStore wraps a Store with metrics collection
type MetricsStore struct {
	store    Store
	registry *metrics.Registry
}

func NewMetricsStore(store Store, registry *metrics.Registry) Store {
	return &MetricsStore{
		store:    store,
		registry: registry,
	}
}

func (s *MetricsStore) Increment(ctx context.Context, name string, start time.Time, size time.Duration, duration int64) (Window, error) {
	began := time.Now()

	w, err := s.store.Increment(ctx, name, start, size, duration)
	s.registry.RecordDatabaseOperation("window_increment", time.Since(began), err)

	return w, err
}

func (s *MetricsStore) Get(ctx context.Context, name string, start time.Time) (Window, error) {
	began := time.Now()

	w, err := s.store.Get(ctx, name, start)
	s.registry.RecordDatabaseOperation("window_get", time.Since(began), err)

	return w, err
}

func (s *MetricsStore) List(ctx context.Context, name string, since time.Time) ([]Window, error) {
	began := time.Now()

	windows, err := s.store.List(ctx, name, since)
	s.registry.RecordDatabaseOperation("window_list", time.Since(began), err)

	return windows, err
}
