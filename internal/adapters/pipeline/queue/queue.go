// Package queue feeds conversion chunks to the worker pool.
//
// The queue is a bounded in-memory channel: enqueue never blocks, so the
// producer can apply its own backpressure policy when the pool falls behind.
package queue

import (
	"context"
	"sync"

	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 64
)

// Chunk is the payload type flowing through the queue.
type Chunk = model.Chunk

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a chunk to the queue.
	// Returns false if the queue is full or closed and the chunk was not
	// accepted.
	Enqueue(ctx context.Context, c Chunk) bool

	// Dequeue returns a channel that receives chunks as they become
	// available. The channel is closed when the queue is closed and
	// drained.
	Dequeue(ctx context.Context) <-chan Chunk

	// Len returns the current number of queued chunks.
	Len(ctx context.Context) int

	// Close stops the queue. Chunks already enqueued still drain.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	chunks   chan Chunk
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.chunks = make(chan Chunk, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)

	return q
}

// Enqueue adds a chunk to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Chunk) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.chunks <- c:
		metrics.RecordQueueEnqueue()
		q.publishSize()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives chunks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for c := range q.chunks {
			select {
			case out <- c:
				metrics.RecordQueueDequeue()
				q.publishSize()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued chunks.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.chunks)
	q.publishSize()
	return size
}

// Close stops the queue. Already-enqueued chunks still drain to consumers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.chunks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) publishSize() {
	size := len(q.chunks)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
