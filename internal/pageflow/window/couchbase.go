package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"pageflow/internal/couchbase"
	"pageflow/internal/validator"
)

// NewWindowsCollection binds the windows collection of the scope.
func NewWindowsCollection(cluster *gocb.Cluster, bucket *gocb.Bucket, scope string) (*couchbase.Couchbase[Window], error) {
	collection := bucket.Scope(scope).Collection("windows")
	store, err := couchbase.NewCouchbase[Window](cluster, bucket, collection)
	if err != nil {
		return nil, err
	}

	return store, nil
}

// CouchbaseStore keeps window aggregates in a Couchbase collection. Increments run
// in a transaction so concurrent transform instances never lose an update.
type CouchbaseStore struct {
	windows      *couchbase.Couchbase[Window]
	transactions *couchbase.Transactions
}

func NewCouchbaseStore(windows *couchbase.Couchbase[Window], transactions *couchbase.Transactions) (*CouchbaseStore, error) {
	s := CouchbaseStore{
		windows:      windows,
		transactions: transactions,
	}

	if err := validator.Validate("window store", s.windows, s.transactions); err != nil {
		return nil, fmt.Errorf("failed to validate window store dependencies: %w", err)
	}

	return &s, nil
}

func (s *CouchbaseStore) Increment(_ context.Context, name string, start time.Time, size time.Duration, duration int64) (Window, error) {
	key := Key(name, start)

	var updated Window
	_, err := s.transactions.Transaction(func(r couchbase.TransactionRunner) error {
		retry := true
		for retry {
			retry = false

			res, err := r.Get(s.windows, key)
			switch {
			case err == nil:
			case errors.Is(err, gocb.ErrDocumentNotFound):
				w := newWindow(name, start, size)
				w.Count = 1
				w.TotalDuration = duration
				_, err := r.Insert(s.windows, key, w)
				switch {
				case err == nil:
					updated = w
					return nil
				case errors.Is(err, gocb.ErrDocumentExists):
					// another instance created it first
					retry = true
					continue
				default:
					return fmt.Errorf("failed to insert window: %w", err)
				}
			default:
				return fmt.Errorf("failed to get window: %w", err)
			}

			var w Window
			if err := res.Content(&w); err != nil {
				return fmt.Errorf("failed to decode window: %w", err)
			}

			w.Count++
			w.TotalDuration += duration
			if _, err := r.Replace(res, w); err != nil {
				return fmt.Errorf("failed to replace window: %w", err)
			}
			updated = w
		}

		return nil
	})
	if err != nil {
		return Window{}, fmt.Errorf("failed to increment window %s: %w", key, err)
	}

	return updated, nil
}

func (s *CouchbaseStore) Get(ctx context.Context, name string, start time.Time) (Window, error) {
	w, err := s.windows.Get(ctx, Key(name, start), nil)
	switch {
	case err == nil:
		return *w, nil
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return Window{}, ErrNotFound
	default:
		return Window{}, fmt.Errorf("failed to get window: %w", err)
	}
}

func (s *CouchbaseStore) List(ctx context.Context, name string, since time.Time) ([]Window, error) {
	query := fmt.Sprintf(`
		SELECT RAW w
		FROM %s w
		WHERE w.name = $name
		AND w.startMillis >= $since
		ORDER BY w.startMillis ASC`,
		s.windows.Keyspace(),
	)

	windows, err := s.windows.Query(ctx, query, &gocb.QueryOptions{
		NamedParameters: map[string]any{
			"name":  name,
			"since": since.UnixMilli(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}

	return windows, nil
}

// Ping checks the backing cluster.
func (s *CouchbaseStore) Ping(ctx context.Context) error {
	return s.windows.Ping(ctx)
}
