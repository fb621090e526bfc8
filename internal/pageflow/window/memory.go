package window

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]Window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]Window)}
}

func (s *MemoryStore) Increment(_ context.Context, name string, start time.Time, size time.Duration, duration int64) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(name, start)
	w, ok := s.windows[key]
	if !ok {
		w = newWindow(name, start, size)
	}
	w.Count++
	w.TotalDuration += duration
	s.windows[key] = w

	return w, nil
}

func (s *MemoryStore) Get(_ context.Context, name string, start time.Time) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[Key(name, start)]
	if !ok {
		return Window{}, ErrNotFound
	}
	return w, nil
}

func (s *MemoryStore) List(_ context.Context, name string, since time.Time) ([]Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Window
	for _, w := range s.windows {
		if w.Name == name && !w.Start.Before(since) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	return out, nil
}
