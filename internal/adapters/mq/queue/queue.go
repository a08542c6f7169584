// Package queue hands decoded packets from the reader to the detection worker.
//
// The queue is bounded. Enqueue never blocks and reports whether the packet
// was accepted; EnqueueWait blocks until there is room, which keeps packet
// order intact for a file reader that must not drop data.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/metrics"
)

const defaultQueueCapacity = 1024

// ErrStopped is returned by EnqueueWait once the queue is closed.
var ErrStopped = errors.New("queue stopped")

// Option tunes a queue before its buffer is allocated.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of buffered packets. Non-positive values
// keep the default.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// Queue provides enqueue and channel-based dequeue semantics for packets.
type Queue interface {
	// Enqueue adds a packet without blocking.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, p model.Packet) bool

	// EnqueueWait adds a packet, blocking until there is room.
	// Returns ErrStopped if the queue is closed.
	EnqueueWait(ctx context.Context, p model.Packet) error

	// Dequeue returns the channel packets are delivered on.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan model.Packet

	// Len returns the current number of queued packets.
	Len(ctx context.Context) int

	// Close stops accepting packets. Queued packets can still be dequeued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	packets  chan model.Packet
	capacity int

	// done is closed by Close to wake blocked EnqueueWait callers.
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	q.packets = make(chan model.Packet, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a packet to the queue if there is room.
func (q *InMemoryQueue) Enqueue(ctx context.Context, p model.Packet) bool {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(metrics.Milliseconds(time.Since(start)))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.recordError("closed")
		return false
	}

	select {
	case q.packets <- p:
		q.recordEnqueue()
		return true
	case <-ctx.Done():
		q.recordError("context_cancelled")
		return false
	default:
		q.recordError("queue_full")
		return false
	}
}

// EnqueueWait adds a packet to the queue, waiting for room.
func (q *InMemoryQueue) EnqueueWait(ctx context.Context, p model.Packet) error {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(metrics.Milliseconds(time.Since(start)))
	}()

	// The read lock is held while blocked so Close cannot close the channel
	// under a pending send; Close signals done first to release it.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.recordError("closed")
		return ErrStopped
	}

	select {
	case q.packets <- p:
		q.recordEnqueue()
		return nil
	case <-q.done:
		q.recordError("closed")
		return ErrStopped
	case <-ctx.Done():
		q.recordError("context_cancelled")
		return ctx.Err()
	}
}

// Dequeue returns a channel that receives packets as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Packet {
	out := make(chan model.Packet)
	go func() {
		defer close(out)
		for {
			select {
			case p, ok := <-q.packets:
				if !ok {
					return
				}
				select {
				case out <- p:
					metrics.RecordQueueDequeue()
					q.updateGauges()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued packets.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.updateGauges()
}

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	// Wake blocked EnqueueWait callers before taking the write lock.
	q.stopOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.packets)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) recordEnqueue() {
	metrics.RecordQueueEnqueue()
	q.updateGauges()
}

func (q *InMemoryQueue) recordError(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) updateGauges() int {
	size := len(q.packets)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}
