package service

import (
	"time"

	"github.com/okian/jackcount/internal/adapters/mq/worker"
	"github.com/okian/jackcount/internal/domain/repetition"
	"github.com/okian/jackcount/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of queue partitions, one worker each.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the total capacity of the frame queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithShardCount sets the number of session store shards.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithMaxSessions caps live sessions. Zero means unbounded.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxSessions = n
		}
	}
}

// WithDedupeCacheBytes sizes the frame id cache.
func WithDedupeCacheBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeBytes = n
		}
	}
}

// WithDedupeTTL sets how long frame ids are remembered.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.dedupeTTL = ttl
	}
}

// WithConfidenceThreshold sets the keypoint gate threshold.
func WithConfidenceThreshold(tau float64) Option {
	return func(s *Service) {
		s.threshold = tau
	}
}

// WithThresholds sets the classification thresholds.
func WithThresholds(t repetition.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = t
	}
}

// WithCadenceUnit sets the cadence unit.
func WithCadenceUnit(u repetition.CadenceUnit) Option {
	return func(s *Service) {
		s.unit = u
	}
}

// WithPublisher forwards every queued frame's result to p.
func WithPublisher(p worker.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock replaces time.Now. Frames without a capture time are stamped
// with it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
