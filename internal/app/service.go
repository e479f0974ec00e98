// Package service hosts the repetition counter: it owns the sessions, the
// frame pipeline and the dependencies required by the HTTP and NATS adapters.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/okian/jackcount/internal/adapters/mq/queue"
	"github.com/okian/jackcount/internal/adapters/mq/worker"
	"github.com/okian/jackcount/internal/adapters/repository"
	"github.com/okian/jackcount/internal/domain/dedupe"
	"github.com/okian/jackcount/internal/domain/gate"
	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/internal/domain/pose"
	"github.com/okian/jackcount/internal/domain/repetition"
	"github.com/okian/jackcount/internal/domain/types"
	"github.com/okian/jackcount/pkg/logger"
	"github.com/okian/jackcount/pkg/metrics"
)

// Service implements the API dependencies for the counter.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions *repository.SessionStore
	deduper  dedupe.Deduper
	queue    *queue.PartitionedQueue
	pool     *worker.Pool
	counter  *repetition.Counter

	publisher worker.Publisher

	// Configuration
	workerCount int
	queueSize   int
	shardCount  int
	maxSessions int
	dedupeBytes int
	dedupeTTL   time.Duration
	threshold   float64
	thresholds  repetition.Thresholds
	unit        repetition.CadenceUnit

	// Counters
	framesProcessed atomic.Int64
	repetitions     atomic.Int64
	duplicates      atomic.Int64

	// State
	started   atomic.Bool
	startedAt time.Time
	now       func() time.Time

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		shardCount:  8,
		maxSessions: 1_000,
		dedupeBytes: dedupe.DefaultCacheBytes,
		dedupeTTL:   dedupe.DefaultTTL,
		threshold:   gate.DefaultThreshold,
		thresholds:  repetition.DefaultThresholds(),
		unit:        repetition.PerSecond,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components. Calling Start on a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting counter service...")

	s.counter = repetition.NewCounter(
		repetition.WithGate(gate.New(s.threshold)),
		repetition.WithThresholds(s.thresholds),
		repetition.WithCadenceUnit(s.unit),
		repetition.WithClock(s.now),
	)
	s.sessions = repository.NewSessionStore(ctx,
		repository.WithShardCount(s.shardCount),
		repository.WithMaxSessions(s.maxSessions),
	)
	s.deduper = dedupe.NewCacheDeduper(
		dedupe.WithCacheBytes(s.dedupeBytes),
		dedupe.WithTTL(s.dedupeTTL),
	)
	s.queue = queue.NewPartitionedQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithPartitions(s.workerCount),
	)

	poolOpts := []worker.PoolOption{worker.WithPoolLogger(s.logger.Named("pool"))}
	if s.publisher != nil {
		poolOpts = append(poolOpts, worker.WithPoolPublisher(s.publisher))
	}
	s.pool = worker.NewPool(s.queue, s, poolOpts...)
	s.pool.Start(ctx)

	s.startedAt = s.now()
	s.started.Store(true)
	s.logger.Info(ctx, "counter service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queue.Capacity()),
		logger.Int("shards", s.shardCount),
		logger.Float64("threshold", s.counter.Gate().Threshold()),
		logger.String("cadenceUnit", string(s.counter.Unit())),
	)
	return nil
}

// Stop drains queued frames and shuts the components down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return nil
	}
	s.logger.Info(ctx, "stopping counter service...")

	var err error
	if s.pool != nil {
		err = multierr.Append(err, s.pool.Shutdown(ctx))
	}
	if s.sessions != nil {
		err = multierr.Append(err, s.sessions.Close())
	}

	s.started.Store(false)
	if err != nil {
		s.logger.Error(ctx, "counter service stopped with errors", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "counter service stopped")
	return nil
}

// Started reports whether the service is running. It stays true while Stop
// drains the queue.
func (s *Service) Started() bool {
	return s.started.Load()
}

func (s *Service) running() error {
	if !s.Started() {
		return ErrNotStarted
	}
	return nil
}

// StartSession creates a fresh session with a new id.
func (s *Service) StartSession(ctx context.Context) (types.SessionView, error) {
	if err := s.running(); err != nil {
		return types.SessionView{}, err
	}
	rec, err := s.sessions.Create(ctx, uuid.NewString(), s.now())
	if err != nil {
		return types.SessionView{}, err
	}
	metrics.RecordSessionStarted()
	s.logger.Debug(ctx, "session started", logger.String("session_id", rec.ID))
	return s.view(&rec), nil
}

// StopSession discards a session and its state.
func (s *Service) StopSession(ctx context.Context, id string) error {
	if err := s.running(); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RecordSessionStopped()
	s.logger.Debug(ctx, "session stopped", logger.String("session_id", id))
	return nil
}

// ResetSession zeroes a session's count, state and cadence.
func (s *Service) ResetSession(ctx context.Context, id string) (types.SessionView, error) {
	if err := s.running(); err != nil {
		return types.SessionView{}, err
	}
	rec, err := s.sessions.Reset(ctx, id, s.now())
	if err != nil {
		return types.SessionView{}, err
	}
	metrics.RecordSessionReset()
	return s.view(&rec), nil
}

// Session returns one session.
func (s *Service) Session(ctx context.Context, id string) (types.SessionView, error) {
	if err := s.running(); err != nil {
		return types.SessionView{}, err
	}
	rec, err := s.sessions.Get(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}
	return s.view(&rec), nil
}

// Sessions lists every live session ordered by creation time.
func (s *Service) Sessions(ctx context.Context) ([]types.SessionView, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	recs := s.sessions.List(ctx)
	out := make([]types.SessionView, len(recs))
	for i := range recs {
		out[i] = s.view(&recs[i])
	}
	return out, nil
}

// ProcessFrame applies one frame to its session synchronously. It is also the
// worker pool's Processor for queued frames.
func (s *Service) ProcessFrame(ctx context.Context, f model.Frame) (types.FrameResult, error) { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	if err := s.running(); err != nil {
		return types.FrameResult{}, err
	}
	sample, err := f.Sample()
	if err != nil {
		return types.FrameResult{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	now := s.now()
	at := f.Timestamp(now)
	var res repetition.Result
	_, err = s.sessions.Update(ctx, f.SessionID, func(r *repository.Record) error {
		res = s.counter.ProcessAt(&r.Session, &sample, at)
		r.Frames++
		if !res.Confident {
			r.Rejected++
		}
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return types.FrameResult{}, err
	}

	s.framesProcessed.Add(1)
	s.record(&res)
	return frameResult(&f, &res, now), nil
}

func (s *Service) record(res *repetition.Result) {
	metrics.RecordFrame(string(res.Outcome))
	switch res.Outcome {
	case repetition.OutcomeTransition, repetition.OutcomeRepetition:
		metrics.RecordTransition(res.Previous.String(), res.State.String())
	}
	if res.Counted {
		s.repetitions.Add(1)
		metrics.RecordRepetition(s.counter.Unit().ToPerSecond(res.Cadence))
	}
}

// Submit processes a frame inline. A frame id that was already accepted
// yields a result with Duplicate set and no processing; a failed frame's id
// is forgotten so it can be retried.
func (s *Service) Submit(ctx context.Context, f model.Frame) (types.FrameResult, error) { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	if err := s.running(); err != nil {
		return types.FrameResult{}, err
	}
	rec, err := s.sessions.Get(ctx, f.SessionID)
	if err != nil {
		return types.FrameResult{}, err
	}
	if f.FrameID == "" {
		return s.ProcessFrame(ctx, f)
	}

	key := DedupeKey(f.SessionID, f.FrameID)
	if s.SeenAndRecord(ctx, key) {
		// A duplicate carries the session's current values.
		if cur, err := s.sessions.Get(ctx, f.SessionID); err == nil {
			rec = cur
		}
		return types.FrameResult{
			SessionID:   f.SessionID,
			FrameID:     f.FrameID,
			Seq:         f.Seq,
			Outcome:     OutcomeDuplicate,
			State:       rec.Session.Current.String(),
			Count:       rec.Session.Count,
			Cadence:     rec.Session.Cadence,
			Duplicate:   true,
			ProcessedAt: s.now(),
		}, nil
	}
	res, err := s.ProcessFrame(ctx, f)
	if err != nil {
		s.Unrecord(ctx, key)
		return types.FrameResult{}, err
	}
	return res, nil
}

// Enqueue submits a frame for asynchronous processing. duplicate is true when
// the frame id was already accepted; the frame is then dropped. A full queue
// yields ErrBackpressure and the frame id is forgotten so it can be retried.
func (s *Service) Enqueue(ctx context.Context, f model.Frame) (bool, error) { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	if err := s.running(); err != nil {
		return false, err
	}
	if len(f.Keypoints) != pose.COCOKeypointCount {
		return false, fmt.Errorf("%w: %d keypoints", ErrInvalidFrame, len(f.Keypoints))
	}
	if _, err := s.sessions.Get(ctx, f.SessionID); err != nil {
		return false, err
	}

	key := ""
	if f.FrameID != "" {
		key = DedupeKey(f.SessionID, f.FrameID)
		if s.SeenAndRecord(ctx, key) {
			s.logger.Debug(ctx, "duplicate frame detected, skipping",
				logger.String("session_id", f.SessionID),
				logger.String("frame_id", f.FrameID),
			)
			return true, nil
		}
	}

	if err := s.queue.Enqueue(ctx, f); err != nil {
		if key != "" {
			s.Unrecord(ctx, key)
		}
		switch {
		case errors.Is(err, queue.ErrQueueFull):
			return false, fmt.Errorf("%w: %v", ErrBackpressure, err)
		case errors.Is(err, queue.ErrQueueClosed):
			return false, ErrNotStarted
		}
		return false, err
	}
	return false, nil
}

// OutcomeDuplicate marks a frame result that was skipped as a repeat.
const OutcomeDuplicate = "duplicate"

// DedupeKey scopes a frame id to its session.
func DedupeKey(sessionID, frameID string) string {
	return sessionID + "/" + frameID
}

// SeenAndRecord atomically checks if a frame key was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		s.duplicates.Add(1)
		metrics.RecordFrameDuplicate()
	}
	return seen
}

// Unrecord forgets a frame key, allowing the frame to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Stats{
		Workers:         s.workerCount,
		QueuePartitions: s.workerCount,
		Threshold:       s.threshold,
		CadenceUnit:     string(s.unit),
		FramesProcessed: s.framesProcessed.Load(),
		Repetitions:     s.repetitions.Load(),
		Duplicates:      s.duplicates.Load(),
	}
	if !s.started.Load() {
		return st
	}

	st.ActiveSessions = s.sessions.Count(ctx)
	st.QueueSize = s.queue.Len(ctx)
	st.QueueCapacity = s.queue.Capacity()
	st.DedupeEntries = s.deduper.Size()
	st.UptimeSeconds = s.now().Sub(s.startedAt).Seconds()

	metrics.UpdateActiveSessions(st.ActiveSessions)
	metrics.UpdateWorkerCount(s.pool.Size())
	return st
}

func (s *Service) view(r *repository.Record) types.SessionView {
	v := types.SessionView{
		ID:          r.ID,
		State:       r.Session.Current.String(),
		Previous:    r.Session.Previous.String(),
		Count:       r.Session.Count,
		Cadence:     r.Session.Cadence,
		CadenceUnit: string(s.unit),
		UpPhaseOpen: r.Session.UpPhaseOpen(),
		Frames:      r.Frames,
		Rejected:    r.Rejected,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if !r.Session.Anchor.IsZero() {
		at := r.Session.Anchor
		v.Anchor = &at
	}
	return v
}

func frameResult(f *model.Frame, res *repetition.Result, now time.Time) types.FrameResult {
	out := types.FrameResult{
		SessionID:   f.SessionID,
		FrameID:     f.FrameID,
		Seq:         f.Seq,
		Outcome:     string(res.Outcome),
		Confident:   res.Confident,
		Classified:  res.Classified.String(),
		State:       res.State.String(),
		LegRatio:    res.LegRatio,
		ArmsUp:      res.ArmsUp,
		Count:       res.Count,
		Cadence:     res.Cadence,
		Counted:     res.Counted,
		ProcessedAt: now,
	}
	for _, r := range res.Rejected {
		out.Rejected = append(out.Rejected, r.String())
	}
	return out
}
