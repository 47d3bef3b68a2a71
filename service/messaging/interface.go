// Package messaging defines the generic queue abstraction underneath the
// observability signal bus and any other decoupled consumer of lifecycle
// notifications. The consensus protocol never depends on a queue for
// correctness - delivery here is at-least-once, best-effort.
package messaging

import (
	"context"
)

// Queue represents an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue, blocking until
	// the queue accepts it or the context is cancelled.
	Publish(ctx context.Context, t *T) error

	// TryPublish adds a new message without blocking and reports whether
	// the queue accepted it. A full queue drops the message.
	TryPublish(ctx context.Context, t *T) bool

	// Consume retrieves a single message from the queue, blocking until one
	// is available or the context is cancelled.
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack indicates failure in processing this message; the queue may
	// redeliver it or park it on the dead-letter queue.
	Nack(err error) error
}
