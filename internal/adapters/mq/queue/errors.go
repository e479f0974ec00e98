package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull   = errors.New("queue partition full")
	ErrQueueClosed = errors.New("queue closed")
)
