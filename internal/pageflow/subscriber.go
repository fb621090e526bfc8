package pageflow

import "context"

// RecordHandler processes one delivered record. A returned error is logged by
// the subscriber and never stops the subscription.
type RecordHandler func(ctx context.Context, rec Record) error

// Subscriber delivers records from one or more topics.
type Subscriber interface {
	// Subscribe calls h for every record on the given topics, in partition order,
	// until ctx is done. It returns nil on cancellation and an error only when
	// the subscription itself can no longer make progress.
	Subscribe(ctx context.Context, topics []string, h RecordHandler) error

	// Close releases the client.
	Close() error
}
