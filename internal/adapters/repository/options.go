package repository

import "time"

// Option applies a configuration option to the SessionStore.
type Option func(*SessionStore)

// WithShardCount sets the number of lock shards.
func WithShardCount(n int) Option {
	return func(s *SessionStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMaxSessions caps the number of live sessions. Zero or negative means
// unlimited.
func WithMaxSessions(n int) Option {
	return func(s *SessionStore) {
		s.maxSessions = n
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *SessionStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
