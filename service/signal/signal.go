// Package signal provides a best-effort observability bus. Every consensus
// lifecycle event may additionally be published here for dashboards and
// forensics tooling; a publish failure is swallowed and must never affect
// consensus correctness.
package signal

import (
	"context"
	"time"

	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/service/messaging"
	qmem "github.com/trust-arbor/arbor/service/messaging/memory"
)

// Envelope is one published observability signal.
type Envelope struct {
	Topic       string            `json:"topic"`
	Payload     interface{}       `json:"payload,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	PublishedAt time.Time         `json:"publishedAt"`
}

// Bus publishes lifecycle signals to interested consumers. Publish has no
// error return on purpose: delivery is best-effort by contract.
type Bus interface {
	Publish(ctx context.Context, topic string, payload interface{})
	Queue() messaging.Queue[Envelope]
}

type bus struct {
	queue messaging.Queue[Envelope]
}

// New creates a bus backed by an in-memory queue.
func New() Bus {
	return &bus{queue: qmem.NewQueue[Envelope](qmem.DefaultConfig())}
}

// NewWithQueue creates a bus backed by the supplied queue.
func NewWithQueue(queue messaging.Queue[Envelope]) Bus {
	return &bus{queue: queue}
}

func (b *bus) Publish(ctx context.Context, topic string, payload interface{}) {
	envelope := &Envelope{
		Topic:       topic,
		Payload:     payload,
		PublishedAt: clock.Now(),
	}
	// best-effort: a full queue drops the signal rather than block the
	// publisher
	_ = b.queue.TryPublish(ctx, envelope)
}

func (b *bus) Queue() messaging.Queue[Envelope] { return b.queue }

var _ Bus = (*bus)(nil)
