package store

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/go-nutrition/logging"
	"go.uber.org/zap"
)

// DefaultQueueSize is the async queue capacity when none is configured.
const DefaultQueueSize = 64

// saveTimeout bounds each background write.
const saveTimeout = 10 * time.Second

// AsyncSink queues records for a single background writer. Enqueue never
// blocks; records that do not fit or fail to save are logged and dropped.
type AsyncSink struct {
	sink   Sink
	queue  chan Record
	done   chan struct{}
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the background writer.
//
// Arguments:
// - sink: The destination sink.
// - queueSize: Queue capacity; DefaultQueueSize when not positive.
// - logger: Logger for dropped records; nil disables logging.
//
// Returns:
// - *AsyncSink: The running sink; stop it with Close.
func NewAsync(sink Sink, queueSize int, logger *zap.Logger) *AsyncSink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	a := &AsyncSink{
		sink:   sink,
		queue:  make(chan Record, queueSize),
		done:   make(chan struct{}),
		logger: logging.Component(logger, "store.async"),
	}
	go a.run()
	return a
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for rec := range a.queue {
		a.write(rec)
	}
}

func (a *AsyncSink) write(rec Record) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("persist panicked", zap.String("id", rec.ID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := a.sink.Save(ctx, rec); err != nil {
		a.logger.Warn("persist failed", zap.String("id", rec.ID), zap.Error(err))
		return
	}
	a.logger.Debug("persisted analysis", zap.String("id", rec.ID))
}

// Enqueue queues a record without blocking.
//
// Returns:
// - bool: False when the queue is full or the sink is closed.
func (a *AsyncSink) Enqueue(rec Record) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.logger.Warn("persist dropped: sink closed", zap.String("id", rec.ID))
		return false
	}
	select {
	case a.queue <- rec:
		return true
	default:
		a.logger.Warn("persist dropped: queue full", zap.String("id", rec.ID))
		return false
	}
}

// Save implements Sink by queueing the record.
func (a *AsyncSink) Save(_ context.Context, rec Record) error {
	if a.Enqueue(rec) {
		return nil
	}
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ErrQueueFull
}

// Close stops accepting records and waits for the queue to drain or ctx to
// end.
func (a *AsyncSink) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
