package eventlog

import (
	"context"
	"time"
)

// Record is the wire format of a single persisted event. Data and Metadata
// are open maps; enum-like values inside them serialize as strings and are
// decoded against fixed allow-lists by the owning domain package.
type Record struct {
	StreamID      string                 `json:"streamId"`
	Type          string                 `json:"type"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CausationID   string                 `json:"causationId,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	// Position is assigned by the log on append; zero until persisted.
	Position int64 `json:"position,omitempty"`
}

// Service is the narrow event-store interface the consensus subsystem
// consumes. Appends are durable before they return; reads return records in
// position order.
type Service interface {
	// Append persists the record at the end of the stream and returns the
	// assigned position.
	Append(ctx context.Context, streamID string, record *Record) (int64, error)

	// ReadStream returns every record of one stream in append order.
	ReadStream(ctx context.Context, streamID string) ([]*Record, error)

	// ReadAll returns every record across streams in global position order.
	ReadAll(ctx context.Context) ([]*Record, error)
}
