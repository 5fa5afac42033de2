package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSink is a mock implementation of Sink.
type MockSink struct {
	mu          sync.Mutex
	saved       []Record
	shouldError bool
	block       chan struct{}
}

func (m *MockSink) Save(_ context.Context, rec Record) error {
	if m.block != nil {
		<-m.block
	}
	if m.shouldError {
		return errors.New("mock save error")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, rec)
	return nil
}

func (m *MockSink) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.saved))
	for i, r := range m.saved {
		ids[i] = r.ID
	}
	return ids
}

func openTemp(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := Open(filepath.Join(t.TempDir(), "analyses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSQLiteSaveGet(t *testing.T) {
	sink := openTemp(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)

	rec := Record{
		ID:         "a1",
		UserID:     "u1",
		CreatedAt:  created,
		Method:     "ensemble",
		Confidence: 0.82,
		Document:   []byte(`{"analysis_id":"a1"}`),
	}
	require.NoError(t, sink.Save(ctx, rec))

	got, err := sink.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, rec.Method, got.Method)
	assert.Equal(t, rec.Confidence, got.Confidence)
	assert.JSONEq(t, string(rec.Document), string(got.Document))

	_, err = sink.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteUpsert(t *testing.T) {
	sink := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Save(ctx, Record{ID: "a1", UserID: "u1", CreatedAt: now, Method: "ensemble", Confidence: 0.5}))
	require.NoError(t, sink.Save(ctx, Record{ID: "a1", UserID: "u1", CreatedAt: now, Method: "hardcore_fallback", Confidence: 0.1}))

	got, err := sink.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "hardcore_fallback", got.Method)
	assert.Equal(t, 0.1, got.Confidence)
	assert.Equal(t, "{}", string(got.Document))
}

func TestSQLiteRejectsMissingID(t *testing.T) {
	sink := openTemp(t)
	assert.Error(t, sink.Save(context.Background(), Record{UserID: "u1"}))
}

func TestSQLiteListByUser(t *testing.T) {
	sink := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, sink.Save(ctx, Record{
			ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Hour), Method: "ensemble",
		}))
	}
	require.NoError(t, sink.Save(ctx, Record{ID: "x", UserID: "u2", CreatedAt: base, Method: "ensemble"}))

	records, err := sink.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0].ID)
	assert.Equal(t, "b", records[1].ID)

	records, err = sink.ListByUser(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSQLiteMemory(t *testing.T) {
	sink, err := Open(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Save(context.Background(), Record{ID: "m", UserID: "u", CreatedAt: time.Now()}))
	_, err = sink.Get(context.Background(), "m")
	assert.NoError(t, err)
}

func TestAsyncSinkDrainsOnClose(t *testing.T) {
	mock := &MockSink{}
	a := NewAsync(mock, 8, nil)

	for _, id := range []string{"1", "2", "3"} {
		assert.True(t, a.Enqueue(Record{ID: id}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
	assert.Equal(t, []string{"1", "2", "3"}, mock.ids())

	assert.False(t, a.Enqueue(Record{ID: "4"}))
	assert.ErrorIs(t, a.Save(context.Background(), Record{ID: "5"}), ErrClosed)
	require.NoError(t, a.Close(ctx))
}

func TestAsyncSinkQueueFull(t *testing.T) {
	mock := &MockSink{block: make(chan struct{})}
	a := NewAsync(mock, 1, nil)

	// the worker takes the first record and blocks; the second fills the queue
	require.True(t, a.Enqueue(Record{ID: "1"}))
	require.Eventually(t, func() bool {
		return a.Enqueue(Record{ID: "2"})
	}, time.Second, time.Millisecond)

	start := time.Now()
	assert.False(t, a.Enqueue(Record{ID: "3"}))
	assert.ErrorIs(t, a.Save(context.Background(), Record{ID: "4"}), ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(mock.block)
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, []string{"1", "2"}, mock.ids())
}

func TestAsyncSinkWriteFailureDropped(t *testing.T) {
	mock := &MockSink{shouldError: true}
	a := NewAsync(mock, 0, nil)

	assert.True(t, a.Enqueue(Record{ID: "1"}))
	require.NoError(t, a.Close(context.Background()))
	assert.Empty(t, mock.ids())
}

func TestAsyncSinkCloseTimeout(t *testing.T) {
	mock := &MockSink{block: make(chan struct{})}
	a := NewAsync(mock, 4, nil)
	require.True(t, a.Enqueue(Record{ID: "1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)

	close(mock.block)
	require.NoError(t, a.Close(context.Background()))
}

func TestAsyncIntoSQLite(t *testing.T) {
	sink := openTemp(t)
	a := NewAsync(sink, 4, nil)

	require.True(t, a.Enqueue(Record{ID: "a1", UserID: "u1", CreatedAt: time.Now(), Method: "ensemble"}))
	require.NoError(t, a.Close(context.Background()))

	got, err := sink.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}
