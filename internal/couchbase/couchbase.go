// Package couchbase provides a generic abstraction layer over the Couchbase Go SDK.
// It offers typed document reads and N1QL queries with context support.
package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// Config holds cluster connection settings.
type Config struct {
	ConnectionString string        `env:"CONNECTION_STRING" envDefault:"couchbase://localhost"`
	Username         string        `env:"USERNAME" envDefault:"Administrator"`
	Password         string        `env:"PASSWORD" envDefault:"password"`
	Bucket           string        `env:"BUCKET_NAME" envDefault:"pageflow"`
	Scope            string        `env:"SCOPE_NAME" envDefault:"_default"`
	ConnectTimeout   time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	KVTimeout        time.Duration `env:"KV_TIMEOUT" envDefault:"5s"`
	QueryTimeout     time.Duration `env:"QUERY_TIMEOUT" envDefault:"30s"`
}

// Connect opens the cluster and waits for the bucket to be ready.
func Connect(config Config) (*gocb.Cluster, *gocb.Bucket, error) {
	cluster, err := gocb.Connect(config.ConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: config.ConnectTimeout,
			KVTimeout:      config.KVTimeout,
			QueryTimeout:   config.QueryTimeout,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(config.Bucket)
	if err := bucket.WaitUntilReady(config.ConnectTimeout, nil); err != nil {
		_ = cluster.Close(nil)
		return nil, nil, fmt.Errorf("bucket %s not ready: %w", config.Bucket, err)
	}

	return cluster, bucket, nil
}

// Couchbase is a generic wrapper around Couchbase SDK operations for documents of type T.
// CAS values are copied onto documents that implement CasSetter.
type Couchbase[T any] struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
}

// NewCouchbase creates a new generic Couchbase wrapper instance.
func NewCouchbase[T any](cluster *gocb.Cluster, bucket *gocb.Bucket, collection *gocb.Collection) (*Couchbase[T], error) {
	if cluster == nil || bucket == nil || collection == nil {
		return nil, errors.New("invalid Couchbase parameters: cluster, bucket, and collection must not be nil")
	}

	return &Couchbase[T]{
		cluster:    cluster,
		bucket:     bucket,
		collection: collection,
	}, nil
}

// Get retrieves a document by key and unmarshals it into type T.
func (c *Couchbase[T]) Get(ctx context.Context, key string, opts *gocb.GetOptions) (*T, error) {
	if opts == nil {
		opts = new(gocb.GetOptions)
	}
	opts.Context = ctx

	res, err := c.collection.Get(key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get document with key %s: %w", key, err)
	}

	var v T
	if err := res.Content(&v); err != nil {
		return nil, fmt.Errorf("failed to parse document content for key %s: %w", key, err)
	}

	if s, ok := any(&v).(CasSetter); ok {
		s.SetCas(uint64(res.Cas()))
	}

	return &v, nil
}

// Query executes a N1QL query and returns the rows as a slice of type T.
func (c *Couchbase[T]) Query(ctx context.Context, query string, opts *gocb.QueryOptions) ([]T, error) {
	if opts == nil {
		opts = new(gocb.QueryOptions)
	}
	opts.Context = ctx

	result, err := c.cluster.Query(query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer result.Close()

	var items []T
	for result.Next() {
		var item T
		if err := result.Row(&item); err != nil {
			return nil, fmt.Errorf("failed to parse query row: %w", err)
		}
		items = append(items, item)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}

	return items, nil
}

// Keyspace returns the fully qualified `bucket`.`scope`.`collection` name for queries.
func (c *Couchbase[T]) Keyspace() string {
	return fmt.Sprintf("`%s`.`%s`.`%s`", c.bucket.Name(), c.collection.ScopeName(), c.collection.Name())
}

// Collection returns the underlying Couchbase collection for transactional operations.
func (c *Couchbase[T]) Collection() *gocb.Collection {
	return c.collection
}

// Ping checks that the key-value service answers.
func (c *Couchbase[T]) Ping(ctx context.Context) error {
	if _, err := c.bucket.Ping(&gocb.PingOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue},
		Context:      ctx,
	}); err != nil {
		return fmt.Errorf("failed to ping couchbase: %w", err)
	}
	return nil
}

// Close closes the Couchbase cluster connection.
func (c *Couchbase[T]) Close() error {
	return c.cluster.Close(nil)
}
