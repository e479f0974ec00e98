// Package dedupe tracks frame ids that have already been accepted.
package dedupe

import (
	"context"
	"time"

	"github.com/coocood/freecache"
)

// Defaults for a cache built without options.
const (
	DefaultCacheBytes = 4 * 1024 * 1024
	DefaultTTL        = time.Minute
)

// Deduper records seen frame IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a frame that was accepted but could not be
	// queued can be retried.
	Unrecord(ctx context.Context, id string)

	// Size reports the number of ids currently held.
	Size() int64
}

// cacheDeduper keeps ids in a freecache ring. Old ids fall out when the ring
// is full or their TTL passes, so memory stays bounded by cacheBytes.
type cacheDeduper struct {
	cache      *freecache.Cache
	cacheBytes int
	ttl        time.Duration
}

var marker = []byte{1}

// NewCacheDeduper creates a freecache-backed deduper.
func NewCacheDeduper(opts ...Option) Deduper {
	d := &cacheDeduper{
		cacheBytes: DefaultCacheBytes,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cache = freecache.NewCache(d.cacheBytes)
	return d
}

func (d *cacheDeduper) SeenAndRecord(_ context.Context, id string) bool {
	prev, err := d.cache.GetOrSet([]byte(id), marker, d.expireSeconds())
	if err != nil {
		// Entry too large for the cache; treat as new and do not remember it.
		return false
	}
	return prev != nil
}

func (d *cacheDeduper) Unrecord(_ context.Context, id string) {
	d.cache.Del([]byte(id))
}

func (d *cacheDeduper) Size() int64 {
	return d.cache.EntryCount()
}

func (d *cacheDeduper) expireSeconds() int {
	if d.ttl <= 0 {
		return 0
	}
	s := int(d.ttl / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
