package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-arbor/arbor/service/eventlog"
)

func newTestRecord(eventType string) *eventlog.Record {
	return &eventlog.Record{
		Type:      eventType,
		Data:      map[string]interface{}{"value": eventType},
		Timestamp: time.Now().UTC(),
	}
}

func TestAppendAssignsPositions(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.Append(ctx, "stream-a", newTestRecord("First"))
	require.NoError(t, err)
	second, err := store.Append(ctx, "stream-b", newTestRecord("Second"))
	require.NoError(t, err)
	third, err := store.Append(ctx, "stream-a", newTestRecord("Third"))
	require.NoError(t, err)

	// positions are global and strictly increasing
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(3), third)
}

func TestAppendValidation(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Append(ctx, "stream", nil)
	assert.Error(t, err)

	_, err = store.Append(ctx, "", newTestRecord("X"))
	assert.Error(t, err)
}

func TestReadStream(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Append(ctx, "stream-a", newTestRecord("A1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, "stream-b", newTestRecord("B1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, "stream-a", newTestRecord("A2"))
	require.NoError(t, err)

	records, err := store.ReadStream(ctx, "stream-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A1", records[0].Type)
	assert.Equal(t, "A2", records[1].Type)
	assert.Equal(t, "stream-a", records[0].StreamID)

	// unknown stream reads empty, not an error
	records, err = store.ReadStream(ctx, "stream-c")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadAllPreservesGlobalOrder(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, eventType := range []string{"One", "Two", "Three"} {
		_, err := store.Append(ctx, "stream", newTestRecord(eventType))
		require.NoError(t, err)
	}

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, expected := range []string{"One", "Two", "Three"} {
		assert.Equal(t, expected, records[i].Type)
		assert.Equal(t, int64(i+1), records[i].Position)
	}
}

func TestAppendCopiesRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	record := newTestRecord("Original")
	_, err := store.Append(ctx, "stream", record)
	require.NoError(t, err)

	// mutating the caller's record must not alter the stored copy
	record.Type = "Mutated"
	stored, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Original", stored[0].Type)
}
