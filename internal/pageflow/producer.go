package pageflow

import "context"

// Producer writes records to a broker.
type Producer interface {
	// Produce writes the record to rec.Topic and blocks until the broker
	// acknowledges it, the context is done, or the ack times out.
	Produce(ctx context.Context, rec Record) error

	// Close flushes outstanding records and releases the client.
	Close() error
}
