package pageflow

import "context"

// Publisher defines the interface for publishing page events to topics.
type Publisher interface {
	// Publish sends the event to the topic and returns once the broker
	// has acknowledged it, or with the delivery error.
	Publish(ctx context.Context, topic string, e PageEvent) error
}
