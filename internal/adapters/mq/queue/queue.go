// Package queue carries frames from ingest to the workers.
//
// Frames are split into partitions keyed by session id so that every frame of
// a session is consumed by the same worker, in arrival order.
package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultPartitions    = 4
)

// Frame is the payload type flowing through the queue.
type Frame = model.Frame

// Queue provides non-blocking enqueue and per-partition channel dequeue.
type Queue interface {
	// Enqueue adds a frame to its session's partition.
	// Returns ErrQueueFull or ErrQueueClosed if the frame was not enqueued.
	Enqueue(ctx context.Context, f Frame) error

	// Partition returns the receive channel of partition i. The channel is
	// closed when the queue is closed.
	Partition(i int) <-chan Frame

	// Partitions returns the number of partitions.
	Partitions() int

	// Len returns the current number of queued frames across partitions.
	Len(ctx context.Context) int

	// Capacity returns the total capacity across partitions.
	Capacity() int

	// Close gracefully shuts down the queue. Queued frames stay readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// PartitionedQueue implements Queue with one buffered channel per partition.
type PartitionedQueue struct {
	parts        []chan Frame
	capacity     int
	partitions   int
	perPartition int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*PartitionedQueue)(nil)

// NewPartitionedQueue creates a new partitioned queue with configuration options.
func NewPartitionedQueue(opts ...Option) *PartitionedQueue {
	q := &PartitionedQueue{
		capacity:   defaultQueueCapacity,
		partitions: defaultPartitions,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.perPartition = (q.capacity + q.partitions - 1) / q.partitions
	q.capacity = q.perPartition * q.partitions
	q.parts = make([]chan Frame, q.partitions)
	for i := range q.parts {
		q.parts[i] = make(chan Frame, q.perPartition)
	}

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)
	return q
}

// PartitionFor maps a session id to its partition using FNV-1a.
func (q *PartitionedQueue) PartitionFor(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(q.partitions))
}

// Enqueue adds a frame to its session's partition without blocking.
func (q *PartitionedQueue) Enqueue(ctx context.Context, f Frame) error { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}

	p := q.PartitionFor(f.SessionID)
	select {
	case q.parts[p] <- f:
		metrics.RecordQueueEnqueue()
		q.updateSizeMetrics()
		return nil
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return fmt.Errorf("%w: partition %d", ErrQueueFull, p)
	}
}

// Partition returns the receive channel of partition i.
func (q *PartitionedQueue) Partition(i int) <-chan Frame {
	return q.parts[i]
}

// Partitions returns the number of partitions.
func (q *PartitionedQueue) Partitions() int {
	return q.partitions
}

// Len returns the current number of queued frames.
func (q *PartitionedQueue) Len(_ context.Context) int {
	return q.updateSizeMetrics()
}

// Capacity returns the total capacity across partitions.
func (q *PartitionedQueue) Capacity() int {
	return q.capacity
}

func (q *PartitionedQueue) updateSizeMetrics() int {
	size := 0
	for _, p := range q.parts {
		size += len(p)
	}
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close gracefully shuts down the queue.
func (q *PartitionedQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	for _, p := range q.parts {
		close(p)
	}
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *PartitionedQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
