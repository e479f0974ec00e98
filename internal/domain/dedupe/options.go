package dedupe

import "time"

// Option applies a configuration option to the deduper.
type Option func(*cacheDeduper)

// WithCacheBytes sets the cache size in bytes. freecache enforces its own
// minimum of 512KiB; non-positive values keep the default.
func WithCacheBytes(n int) Option {
	return func(d *cacheDeduper) {
		if n > 0 {
			d.cacheBytes = n
		}
	}
}

// WithTTL sets how long an id is remembered. Zero or negative keeps ids until
// they are evicted by newer ones.
func WithTTL(ttl time.Duration) Option {
	return func(d *cacheDeduper) {
		d.ttl = ttl
	}
}
