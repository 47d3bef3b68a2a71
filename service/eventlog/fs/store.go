// Package fs provides an append-only event store persisted as one JSON file
// per record on any storage supported by the abstract file system (local
// disk, in-memory mem://, cloud object stores).
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"

	"github.com/trust-arbor/arbor/service/eventlog"
)

// Config holds configuration for the file-backed event store.
type Config struct {
	// BaseURL is the directory all records are stored under, e.g.
	// file:///var/lib/arbor/events or mem://localhost/events.
	BaseURL string
}

// Store persists records as zero-padded, position-named JSON files so that a
// plain lexical listing yields replay order.
type Store struct {
	fs      afs.Service
	config  Config
	mu      sync.Mutex
	nextPos int64
}

// New creates a file-backed event store rooted at config.BaseURL.
func New(fs afs.Service, config Config) (*Store, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	s := &Store{fs: fs, config: config}
	ctx := context.Background()
	exists, _ := fs.Exists(ctx, config.BaseURL)
	if !exists {
		if err := fs.Create(ctx, config.BaseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create event store directory %s: %w", config.BaseURL, err)
		}
	}
	if err := s.restorePosition(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// restorePosition recovers the next append position from existing records.
func (s *Store) restorePosition(ctx context.Context) error {
	objects, err := s.fs.List(ctx, s.config.BaseURL, option.NewRecursive(false))
	if err != nil {
		return wrapStoreErr("list", err)
	}
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		var position int64
		if _, err := fmt.Sscanf(object.Name(), "%020d", &position); err == nil && position > s.nextPos {
			s.nextPos = position
		}
	}
	return nil
}

// Append persists the record and returns its assigned global position.
func (s *Store) Append(ctx context.Context, streamID string, record *eventlog.Record) (int64, error) {
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
	stored.Position = s.nextPos + 1
	data, err := json.Marshal(&stored)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}
	URL := path.Join(s.config.BaseURL, fmt.Sprintf("%020d.json", stored.Position))
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewBuffer(data)); err != nil {
		return 0, wrapStoreErr("append", err)
	}
	s.nextPos = stored.Position
	*record = stored
	return stored.Position, nil
}

// ReadStream returns every record of one stream in append order.
func (s *Store) ReadStream(ctx context.Context, streamID string) ([]*eventlog.Record, error) {
	all, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var ret []*eventlog.Record
	for _, record := range all {
		if record.StreamID == streamID {
			ret = append(ret, record)
		}
	}
	return ret, nil
}

// ReadAll returns every record in global position order.
func (s *Store) ReadAll(ctx context.Context) ([]*eventlog.Record, error) {
	objects, err := s.fs.List(ctx, s.config.BaseURL, option.NewRecursive(false))
	if err != nil {
		return nil, wrapStoreErr("list", err)
	}
	var files []storage.Object
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			files = append(files, object)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	ret := make([]*eventlog.Record, 0, len(files))
	for _, object := range files {
		data, err := s.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, wrapStoreErr("read", err)
		}
		record := &eventlog.Record{}
		if err := json.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", object.Name(), err)
		}
		ret = append(ret, record)
	}
	return ret, nil
}

// wrapStoreErr maps backend permission failures to the uniform
// authorization error; everything else keeps its operation context.
func wrapStoreErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrPermission) {
		return eventlog.Unauthorized(operation, err)
	}
	// cloud vendors surface ACL failures as text only
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "permission") || strings.Contains(message, "denied") || strings.Contains(message, "forbidden") {
		return eventlog.Unauthorized(operation, err)
	}
	return fmt.Errorf("event store %s failed: %w", operation, err)
}

var _ eventlog.Service = (*Store)(nil)
