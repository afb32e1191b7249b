// Package queue buffers accepted chat messages and writes them behind
// the live broadcast path, so storage latency never stalls relay.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/Absterrg0/Excalidraw/internal/store"
	"github.com/Absterrg0/Excalidraw/pkg/metrics"
)

// Writer is the storage collaborator: one all-or-nothing batched insert.
type Writer interface {
	InsertChats(ctx context.Context, recs []store.ChatRecord) error
}

// Message is one pending durable write.
type Message struct {
	RoomID     string
	UserID     string
	Body       string
	EnqueuedAt time.Time
}

// Queue flushes its buffer on a fixed interval, or immediately once
// depth crosses the high-water mark. A failed flush drops its batch:
// there is no retry or dead-letter path, only a log line and a counter.
type Queue struct {
	log *slog.Logger
	w   Writer

	interval  time.Duration
	highWater int
	batch     int

	mu       sync.Mutex
	buf      []Message
	flushing bool

	kick    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

func New(log *slog.Logger, w Writer, interval time.Duration, highWater, batch int) *Queue {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if highWater <= 0 {
		highWater = 10
	}
	if batch <= 0 {
		batch = 20
	}
	return &Queue{
		log:       log,
		w:         w,
		interval:  interval,
		highWater: highWater,
		batch:     batch,
		kick:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Enqueue appends a message to the buffer. Never blocks on an in-flight
// flush; past the high-water mark it nudges the run loop to flush now.
func (q *Queue) Enqueue(m Message) {
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	q.buf = append(q.buf, m)
	depth := len(q.buf)
	urgent := depth > q.highWater && !q.flushing
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	if depth > q.highWater*10 {
		q.log.Warn("queue.backlog", "depth", depth)
	}
	if urgent {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
}

// Depth reports the current buffer size.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Run drives the recurring flush until ctx is cancelled or DrainAndStop
// is called. Call it in its own goroutine.
func (q *Queue) Run(ctx context.Context) {
	q.started.Store(true)
	defer close(q.done)
	t := time.NewTicker(q.interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			q.Flush(ctx)
		case <-q.kick:
			q.Flush(ctx)
		case <-ctx.Done():
			return
		case <-q.quit:
			return
		}
	}
}

// Flush drains up to one batch from the head of the buffer and submits
// it as a single transactional write. A no-op when empty or when a
// flush is already in flight; entries enqueued after the drain point
// stay for the next cycle. On failure the drained batch is dropped.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	q.mu.Lock()
	if q.flushing || len(q.buf) == 0 {
		q.mu.Unlock()
		return 0, nil
	}
	q.flushing = true
	n := min(q.batch, len(q.buf))
	work := make([]Message, n)
	copy(work, q.buf[:n])
	rest := copy(q.buf, q.buf[n:])
	q.buf = q.buf[:rest]
	q.mu.Unlock()

	recs := make([]store.ChatRecord, n)
	for i, m := range work {
		recs[i] = store.ChatRecord{RoomID: m.RoomID, UserID: m.UserID, Message: m.Body}
	}
	err := q.w.InsertChats(ctx, recs)

	q.mu.Lock()
	q.flushing = false
	depth := len(q.buf)
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(depth))

	if err != nil {
		q.log.Error("queue.flush.failed", "dropped", n, "err", err)
		metrics.ChatsDroppedTotal.Add(float64(n))
		return 0, err
	}
	metrics.ChatsFlushedTotal.Add(float64(n))
	return n, nil
}

// DrainAndStop cancels the recurring flush and performs a final drain:
// batches are flushed until the buffer is empty or one attempt fails.
// Whatever a failed attempt leaves behind is lost; that is logged, not
// hidden.
func (q *Queue) DrainAndStop(ctx context.Context) {
	q.once.Do(func() { close(q.quit) })
	if q.started.Load() {
		<-q.done
	}

	for q.Depth() > 0 {
		n, err := q.Flush(ctx)
		if err != nil {
			q.log.Error("queue.drain.aborted", "remaining", q.Depth(), "err", err)
			return
		}
		if n == 0 {
			return
		}
	}
	q.log.Info("queue.drained")
}
