package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/require"

	"github.com/Absterrg0/Excalidraw/internal/store"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]store.ChatRecord
	fail    bool
	block   chan struct{} // when set, InsertChats waits on it
}

func (f *fakeWriter) InsertChats(_ context.Context, recs []store.ChatRecord) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("storage down")
	}
	cp := make([]store.ChatRecord, len(recs))
	copy(cp, recs)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeWriter) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeWriter) rows() []store.ChatRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ChatRecord
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func msg(room, body string) Message {
	return Message{RoomID: room, UserID: "u1", Body: body}
}

func TestHighWaterMarkTriggersImmediateFlush(t *testing.T) {
	w := &fakeWriter{}
	// Hour-long interval: only the high-water mark can trigger a flush
	q := New(testLogger(), w, time.Hour, 10, 20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	for i := 0; i < 11; i++ {
		q.Enqueue(msg("r1", "m"))
	}

	require.Eventually(t, func() bool {
		return w.batchCount() == 1 && q.Depth() == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, w.rows(), 11)
}

func TestFlushDrainsBoundedBatchFIFO(t *testing.T) {
	w := &fakeWriter{}
	q := New(testLogger(), w, time.Hour, 10, 5)

	for _, body := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		q.Enqueue(msg("r1", body))
	}

	n, err := q.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 2, q.Depth())

	rows := w.rows()
	require.Len(t, rows, 5)
	for i, body := range []string{"a", "b", "c", "d", "e"} {
		require.Equal(t, body, rows[i].Message)
	}
}

func TestFailedFlushDropsBatch(t *testing.T) {
	w := &fakeWriter{fail: true}
	q := New(testLogger(), w, time.Hour, 10, 20)

	for i := 0; i < 3; i++ {
		q.Enqueue(msg("r1", "m"))
	}

	_, err := q.Flush(context.Background())
	require.Error(t, err)
	// The batch is gone: dropped, not re-queued
	require.Equal(t, 0, q.Depth())
	require.Equal(t, 0, w.batchCount())
}

func TestEnqueueDuringFlushSurvivesToNextCycle(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	q := New(testLogger(), w, time.Hour, 10, 20)

	q.Enqueue(msg("r1", "early"))

	flushed := make(chan struct{})
	go func() {
		_, _ = q.Flush(context.Background())
		close(flushed)
	}()

	// The drain point has passed once the buffer is empty
	require.Eventually(t, func() bool {
		return q.Depth() == 0
	}, time.Second, 5*time.Millisecond)

	// The write is in flight; enqueue must not block and must survive
	q.Enqueue(msg("r1", "late"))
	require.Equal(t, 1, q.Depth())

	close(w.block)
	<-flushed

	n, err := q.Flush(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
	require.Equal(t, 0, q.Depth())

	rows := w.rows()
	require.Equal(t, "early", rows[0].Message)
	require.Equal(t, "late", rows[len(rows)-1].Message)
}

func TestDrainAndStopFlushesRemainder(t *testing.T) {
	w := &fakeWriter{}
	q := New(testLogger(), w, time.Hour, 10, 20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	for i := 0; i < 4; i++ {
		q.Enqueue(msg("r1", "m"))
	}

	q.DrainAndStop(context.Background())
	require.Equal(t, 0, q.Depth())
	require.Len(t, w.rows(), 4)
	// 4 entries fit one batch: exactly one pass
	require.Equal(t, 1, w.batchCount())
}

func TestDrainAndStopLoopsOverMultipleBatches(t *testing.T) {
	w := &fakeWriter{}
	q := New(testLogger(), w, time.Hour, 100, 3)

	for i := 0; i < 8; i++ {
		q.Enqueue(msg("r1", "m"))
	}

	q.DrainAndStop(context.Background())
	require.Equal(t, 0, q.Depth())
	require.Len(t, w.rows(), 8)
	require.Equal(t, 3, w.batchCount())
}

func TestDrainAndStopGivesUpAfterOneFailedAttempt(t *testing.T) {
	w := &fakeWriter{fail: true}
	q := New(testLogger(), w, time.Hour, 100, 3)

	for i := 0; i < 8; i++ {
		q.Enqueue(msg("r1", "m"))
	}

	q.DrainAndStop(context.Background())
	// First batch dropped by the failed write, rest abandoned
	require.Equal(t, 5, q.Depth())
	require.Equal(t, 0, w.batchCount())
}

func TestTimerFlushesNonEmptyBuffer(t *testing.T) {
	w := &fakeWriter{}
	q := New(testLogger(), w, 20*time.Millisecond, 100, 20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue(msg("r1", "tick"))

	require.Eventually(t, func() bool {
		return q.Depth() == 0 && w.batchCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
