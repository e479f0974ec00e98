// Package worker drains queue partitions and applies frames to sessions.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/internal/domain/types"
	"github.com/okian/jackcount/pkg/logger"
	"github.com/okian/jackcount/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Frame is what workers read off the queue.
type Frame = model.Frame

// Processor applies one frame to its session.
type Processor interface {
	ProcessFrame(ctx context.Context, f Frame) (types.FrameResult, error)
}

// Publisher receives every successfully processed result.
type Publisher interface {
	Publish(ctx context.Context, r types.FrameResult) error
}

// Source is the partitioned queue the pool drains.
type Source interface {
	Partition(i int) <-chan Frame
	Partitions() int
	Close() error
}

// Worker processes frames from one channel.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, the channel is
	// closed, or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining its channel.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for a single queue partition.
type InMemoryWorker struct {
	frames    <-chan Frame
	processor Processor
	publisher Publisher
	name      string

	processed atomic.Int64
	failed    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(frames <-chan Frame, processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		frames:    frames,
		processor: processor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case f, ok := <-w.frames:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.processFrame(ctx, f); err != nil {
				w.logger.Error(ctx, "error processing frame",
					logger.String("session_id", f.SessionID),
					logger.String("frame_id", f.FrameID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns the number of frames this worker applied successfully.
func (w *InMemoryWorker) Processed() int64 {
	return w.processed.Load()
}

// Failed returns the number of frames this worker could not apply.
func (w *InMemoryWorker) Failed() int64 {
	return w.failed.Load()
}

func (w *InMemoryWorker) processFrame(ctx context.Context, f Frame) error { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	res, err := w.processor.ProcessFrame(ctx, f)
	if err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process_error")
		return fmt.Errorf("process frame %s/%s: %w", f.SessionID, f.FrameID, err)
	}
	w.processed.Add(1)

	if w.publisher == nil {
		return nil
	}
	if err := w.publisher.Publish(ctx, res); err != nil {
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish result %s/%s: %w", f.SessionID, f.FrameID, err)
	}
	return nil
}

// Pool runs one worker per queue partition so that frames of a session are
// applied in order by a single goroutine.
type Pool struct {
	workers   []*InMemoryWorker
	source    Source
	processor Processor
	publisher Publisher

	shutdownTimeout time.Duration
	stopOnce        sync.Once
	stop            chan struct{}
	wg              sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a worker per partition of source.
func NewPool(source Source, processor Processor, opts ...PoolOption) *Pool {
	p := &Pool{
		source:          source,
		processor:       processor,
		shutdownTimeout: poolShutdownTimeout,
		stop:            make(chan struct{}),
		logger:          logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	n := source.Partitions()
	p.workers = make([]*InMemoryWorker, n)
	for i := 0; i < n; i++ {
		p.workers[i] = NewInMemoryWorker(
			source.Partition(i),
			processor,
			WithName("worker-"+strconv.Itoa(i)),
			WithPublisher(p.publisher),
		)
	}

	metrics.UpdateWorkerCount(n)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns the frames applied successfully across all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.startMetricsUpdater(ctx)
	}()
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			metrics.UpdateWorkerCount(len(p.workers))
		}
	}
}

// Shutdown closes the source and waits for the workers to drain what is
// already queued. Workers still running after the timeout are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.source.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	p.stopOnce.Do(func() { close(p.stop) })

	shutdownCtx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool drain timed out, stopping workers")
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
		<-drained
		metrics.UpdateWorkerCount(0)
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
}
