package pageflow

import "context"

// Consumer defines the interface for consuming page events from a topic.
type Consumer interface {
	// Consume processes events from the topic until ctx is done.
	Consume(ctx context.Context, topic string) error
}

// EventHandler is the side effect applied to every consumed event.
type EventHandler interface {
	HandleEvent(ctx context.Context, rec Record, e PageEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, rec Record, e PageEvent) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, rec Record, e PageEvent) error {
	return f(ctx, rec, e)
}
