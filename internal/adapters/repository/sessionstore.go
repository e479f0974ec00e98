package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/jackcount/pkg/metrics"
)

const (
	defaultShardCount            = 8
	defaultMetricsUpdateInterval = 5 * time.Second
)

var _ Store = (*SessionStore)(nil)

type shard struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// SessionStore is a sharded, in-memory Store. Each session lives in exactly
// one shard chosen by FNV-1a of its id; Update holds that shard's write lock
// for the duration of the callback.
type SessionStore struct {
	shards      []*shard
	shardCount  int
	maxSessions int
	count       atomic.Int64

	metricsUpdateInterval time.Duration

	closed   atomic.Bool
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewSessionStore constructs a session store with configuration options.
func NewSessionStore(ctx context.Context, opts ...Option) *SessionStore {
	s := &SessionStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]*Record)}
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

func (s *SessionStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Create implements Store.Create.
func (s *SessionStore) Create(_ context.Context, id string, now time.Time) (Record, error) {
	if s.closed.Load() {
		return Record{}, ErrClosed
	}
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[id]; ok {
		return Record{}, fmt.Errorf("%w: %s", ErrExists, id)
	}
	if n := s.count.Add(1); s.maxSessions > 0 && n > int64(s.maxSessions) {
		s.count.Add(-1)
		metrics.RecordErrorByComponent("repository", "session_limit")
		return Record{}, ErrSessionLimit
	}

	r := &Record{ID: id, CreatedAt: now, UpdatedAt: now}
	sh.records[id] = r
	metrics.UpdateActiveSessions(int(s.count.Load()))
	return *r, nil
}

// Get implements Store.Get.
func (s *SessionStore) Get(_ context.Context, id string) (Record, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.records[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *r, nil
}

// Update implements Store.Update. fn works on a copy that is committed only
// when fn returns nil.
func (s *SessionStore) Update(_ context.Context, id string, fn func(*Record) error) (Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.records[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := *r
	if err := fn(&next); err != nil {
		return *r, err
	}
	*r = next
	return next, nil
}

// Reset implements Store.Reset.
func (s *SessionStore) Reset(ctx context.Context, id string, now time.Time) (Record, error) {
	return s.Update(ctx, id, func(r *Record) error {
		r.Session.Reset()
		r.Frames = 0
		r.Rejected = 0
		r.UpdatedAt = now
		return nil
	})
}

// Delete implements Store.Delete.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[id]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(sh.records, id)
	metrics.UpdateActiveSessions(int(s.count.Add(-1)))
	return nil
}

// List implements Store.List. Ties on creation time are broken by id.
func (s *SessionStore) List(_ context.Context) []Record {
	out := make([]Record, 0, s.count.Load())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.records {
			out = append(out, *r)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count implements Store.Count.
func (s *SessionStore) Count(_ context.Context) int {
	return int(s.count.Load())
}

// Close stops the background metrics goroutine and rejects new sessions.
func (s *SessionStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// startMetricsUpdater starts a background goroutine that updates repository metrics
func (s *SessionStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *SessionStore) updateMetrics() {
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.records)
		sh.mu.RUnlock()
		metrics.UpdateSessionsPerShard(fmt.Sprintf("shard_%d", i), n)
	}
	metrics.UpdateActiveSessions(s.Count(context.Background()))
}
