package queue

// Option applies a configuration option to the PartitionedQueue.
type Option func(*PartitionedQueue)

// WithCapacity sets the total capacity, split evenly across partitions.
func WithCapacity(capacity int) Option {
	return func(q *PartitionedQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithPartitions sets the number of partitions. Each partition is drained by
// exactly one worker.
func WithPartitions(n int) Option {
	return func(q *PartitionedQueue) {
		if n > 0 {
			q.partitions = n
		}
	}
}
