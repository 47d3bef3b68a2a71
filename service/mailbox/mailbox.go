// Package mailbox provides the bounded, two-priority inbox primitive used
// by actors to buffer inbound work without unbounded memory growth. A slice
// of the capacity is reserved for high-priority traffic so that routine
// load can never starve urgent envelopes.
//
// A Mailbox is not internally synchronized: the owning actor is expected to
// call it from its own message loop. Callers needing multi-writer access
// must add their own locking.
package mailbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/internal/idgen"
)

// Priority classes. FIFO order holds within each class.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// ErrMailboxFull is returned when an enqueue would exceed the capacity
// available to the envelope's priority class.
var ErrMailboxFull = errors.New("mailbox full")

// Envelope is one buffered unit of inbound work.
type Envelope struct {
	ID         string
	Priority   Priority
	Payload    interface{}
	EnqueuedAt time.Time
}

// NewEnvelope wraps a payload with a generated id and timestamp.
func NewEnvelope(payload interface{}) *Envelope {
	return &Envelope{
		ID:         idgen.New(),
		Payload:    payload,
		EnqueuedAt: clock.Now(),
	}
}

// CapacityInfo reports mailbox utilization for backpressure signaling.
type CapacityInfo struct {
	MaxSize         int
	Size            int
	HighCount       int
	NormalCount     int
	HighSlotsFree   int
	NormalSlotsFree int
	Utilization     float64
}

// Mailbox buffers envelopes in two priority classes.
type Mailbox struct {
	maxSize      int
	reservedHigh int
	high         []*Envelope
	normal       []*Envelope
}

// New creates a mailbox. maxSize must be positive; reservedHighPriority
// must be non-negative and no larger than maxSize.
func New(maxSize, reservedHighPriority int) (*Mailbox, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("maxSize must be at least 1, got %d", maxSize)
	}
	if reservedHighPriority < 0 {
		return nil, fmt.Errorf("reservedHighPriority cannot be negative, got %d", reservedHighPriority)
	}
	if reservedHighPriority > maxSize {
		return nil, fmt.Errorf("reservedHighPriority %d exceeds maxSize %d", reservedHighPriority, maxSize)
	}
	return &Mailbox{maxSize: maxSize, reservedHigh: reservedHighPriority}, nil
}

// Enqueue buffers an envelope under the given priority. High-priority
// envelopes succeed while any slot remains; normal-priority envelopes can
// never consume the reserved high-priority slots.
func (m *Mailbox) Enqueue(envelope *Envelope, priority Priority) error {
	if envelope == nil {
		return fmt.Errorf("envelope cannot be nil")
	}
	total := len(m.high) + len(m.normal)
	switch priority {
	case PriorityHigh:
		if total >= m.maxSize {
			return ErrMailboxFull
		}
		envelope.Priority = priority
		m.high = append(m.high, envelope)
	case PriorityNormal:
		if total >= m.maxSize-m.reservedHigh {
			return ErrMailboxFull
		}
		envelope.Priority = priority
		m.normal = append(m.normal, envelope)
	default:
		return fmt.Errorf("unknown priority: %q", priority)
	}
	return nil
}

// Dequeue returns the oldest high-priority envelope if any exist, else the
// oldest normal envelope. The second return is false when the mailbox is
// empty.
func (m *Mailbox) Dequeue() (*Envelope, bool) {
	if len(m.high) > 0 {
		envelope := m.high[0]
		m.high = m.high[1:]
		return envelope, true
	}
	if len(m.normal) > 0 {
		envelope := m.normal[0]
		m.normal = m.normal[1:]
		return envelope, true
	}
	return nil, false
}

// Peek mirrors Dequeue without removing the envelope.
func (m *Mailbox) Peek() (*Envelope, bool) {
	if len(m.high) > 0 {
		return m.high[0], true
	}
	if len(m.normal) > 0 {
		return m.normal[0], true
	}
	return nil, false
}

// Len returns the number of buffered envelopes.
func (m *Mailbox) Len() int {
	return len(m.high) + len(m.normal)
}

// CapacityInfo reports remaining slots per class and total utilization.
func (m *Mailbox) CapacityInfo() CapacityInfo {
	total := len(m.high) + len(m.normal)
	normalFree := m.maxSize - m.reservedHigh - total
	if normalFree < 0 {
		normalFree = 0
	}
	return CapacityInfo{
		MaxSize:         m.maxSize,
		Size:            total,
		HighCount:       len(m.high),
		NormalCount:     len(m.normal),
		HighSlotsFree:   m.maxSize - total,
		NormalSlotsFree: normalFree,
		Utilization:     float64(total) / float64(m.maxSize),
	}
}
