// Package sqlite provides a relational append-only event store on SQLite.
// Positions come from the table's autoincrement rowid, so appends are
// single-writer-per-position without any coordination in this package.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trust-arbor/arbor/service/eventlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	position       INTEGER PRIMARY KEY AUTOINCREMENT,
	stream_id      TEXT NOT NULL,
	type           TEXT NOT NULL,
	data           TEXT,
	metadata       TEXT,
	causation_id   TEXT,
	correlation_id TEXT,
	timestamp      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_stream ON events(stream_id, position);
`

// Store is a SQLite-backed event store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) a SQLite event store at the given path.
// Use ":memory:" for an ephemeral store.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, wrapStoreErr("migrate", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists the record and returns its assigned position.
func (s *Store) Append(ctx context.Context, streamID string, record *eventlog.Record) (int64, error) {
	if record == nil {
		return 0, fmt.Errorf("record cannot be nil")
	}
	if streamID == "" {
		return 0, fmt.Errorf("streamID cannot be empty")
	}
	data, err := encodeMap(record.Data)
	if err != nil {
		return 0, err
	}
	metadata, err := encodeMap(record.Metadata)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events(stream_id, type, data, metadata, causation_id, correlation_id, timestamp) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		streamID, record.Type, data, metadata, record.CausationID, record.CorrelationID,
		record.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, wrapStoreErr("append", err)
	}
	position, err := result.LastInsertId()
	if err != nil {
		return 0, wrapStoreErr("append", err)
	}
	record.StreamID = streamID
	record.Position = position
	return position, nil
}

// ReadStream returns every record of one stream in append order.
func (s *Store) ReadStream(ctx context.Context, streamID string) ([]*eventlog.Record, error) {
	return s.query(ctx,
		`SELECT position, stream_id, type, data, metadata, causation_id, correlation_id, timestamp FROM events WHERE stream_id = ? ORDER BY position`,
		streamID)
}

// ReadAll returns every record across streams in global position order.
func (s *Store) ReadAll(ctx context.Context) ([]*eventlog.Record, error) {
	return s.query(ctx,
		`SELECT position, stream_id, type, data, metadata, causation_id, correlation_id, timestamp FROM events ORDER BY position`)
}

func (s *Store) query(ctx context.Context, SQL string, args ...interface{}) ([]*eventlog.Record, error) {
	rows, err := s.db.QueryContext(ctx, SQL, args...)
	if err != nil {
		return nil, wrapStoreErr("read", err)
	}
	defer rows.Close()
	var ret []*eventlog.Record
	for rows.Next() {
		record := &eventlog.Record{}
		var data, metadata, timestamp string
		if err := rows.Scan(&record.Position, &record.StreamID, &record.Type, &data, &metadata,
			&record.CausationID, &record.CorrelationID, &timestamp); err != nil {
			return nil, wrapStoreErr("read", err)
		}
		if record.Data, err = decodeMap(data); err != nil {
			return nil, err
		}
		if record.Metadata, err = decodeMap(metadata); err != nil {
			return nil, err
		}
		if record.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("failed to decode record timestamp %q: %w", timestamp, err)
		}
		ret = append(ret, record)
	}
	return ret, rows.Err()
}

func encodeMap(value map[string]interface{}) (string, error) {
	if len(value) == 0 {
		return "", nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode record payload: %w", err)
	}
	return string(data), nil
}

func decodeMap(value string) (map[string]interface{}, error) {
	if value == "" {
		return nil, nil
	}
	var ret map[string]interface{}
	if err := json.Unmarshal([]byte(value), &ret); err != nil {
		return nil, fmt.Errorf("failed to decode record payload: %w", err)
	}
	return ret, nil
}

func wrapStoreErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	var driverErr *sqlite.Error
	if errors.As(err, &driverErr) {
		// mask off the extended result bits
		switch driverErr.Code() & 0xff {
		case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY:
			return eventlog.Unauthorized(operation, err)
		}
		return fmt.Errorf("event store %s failed: %w", operation, err)
	}
	if errors.Is(err, os.ErrPermission) {
		return eventlog.Unauthorized(operation, err)
	}
	// fallback for errors that reach us as text only
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "permission") || strings.Contains(message, "readonly") || strings.Contains(message, "authoriz") {
		return eventlog.Unauthorized(operation, err)
	}
	return fmt.Errorf("event store %s failed: %w", operation, err)
}

var _ eventlog.Service = (*Store)(nil)
