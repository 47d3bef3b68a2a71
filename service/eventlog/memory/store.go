// Package memory provides an in-memory append-only event store, used as the
// default log and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/trust-arbor/arbor/service/eventlog"
)

// Store keeps records in a single global slice; per-stream ordering is a
// projection of the global order, so ReadAll and ReadStream agree.
type Store struct {
	mu      sync.RWMutex
	records []*eventlog.Record
	streams map[string][]*eventlog.Record
}

// New creates an empty in-memory event store.
func New() *Store {
	return &Store{
		streams: make(map[string][]*eventlog.Record),
	}
}

// Append persists the record and returns its assigned global position.
func (s *Store) Append(_ context.Context, streamID string, record *eventlog.Record) (int64, error) {
	if record == nil {
		return 0, fmt.Errorf("record cannot be nil")
	}
	if streamID == "" {
		return 0, fmt.Errorf("streamID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *record
	stored.StreamID = streamID
	stored.Position = int64(len(s.records)) + 1
	s.records = append(s.records, &stored)
	s.streams[streamID] = append(s.streams[streamID], &stored)
	return stored.Position, nil
}

// ReadStream returns every record of one stream in append order.
func (s *Store) ReadStream(_ context.Context, streamID string) ([]*eventlog.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*eventlog.Record{}, s.streams[streamID]...), nil
}

// ReadAll returns every record in global position order.
func (s *Store) ReadAll(_ context.Context) ([]*eventlog.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*eventlog.Record{}, s.records...), nil
}

var _ eventlog.Service = (*Store)(nil)
