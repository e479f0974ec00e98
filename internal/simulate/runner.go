package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/jackcount/internal/domain/types"
	"github.com/okian/jackcount/pkg/logger"
)

const (
	pollInterval         = 50 * time.Millisecond
	percentageMultiplier = 100
)

type counters struct {
	submitted atomic.Int64
	accepted  atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// Run executes a complete simulation against a running service and returns
// ErrCountMismatch if any session's count differs from the script.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now(), Sessions: cfg.Sessions}

	script, err := loadScript(cfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("script", script.Name),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("framesPerSession", script.FrameCount()),
		logger.Int("expected", script.ExpectedCount()),
		logger.Bool("async", cfg.Async),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var (
		c        counters
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, cfg.Sessions)
		errs     = make([]error, 0)
	)
	for i := 0; i < cfg.Sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(i))) //nolint:gosec // synthetic jitter
			out, err := runSession(ctx, cfg, client, script, rng, &c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			outcomes = append(outcomes, out)
		}(i)
	}
	wg.Wait()

	stats.FramesGenerated = cfg.Sessions * script.FrameCount()
	stats.FramesSubmitted = int(c.submitted.Load())
	stats.FramesAccepted = int(c.accepted.Load())
	stats.FramesDuplicate = int(c.duplicate.Load())
	stats.FramesFailed = int(c.failed.Load())
	for _, o := range outcomes {
		if o.OK() {
			stats.Verified++
			continue
		}
		stats.Mismatched++
		log.Error(ctx, "count mismatch",
			logger.String("session_id", o.SessionID),
			logger.Int("expected", o.Expected),
			logger.Int("counted", o.Counted),
		)
	}
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if len(errs) > 0 {
		return fmt.Errorf("%d sessions failed: %w", len(errs), errs[0])
	}
	if stats.Mismatched > 0 {
		return fmt.Errorf("%w: %d of %d sessions", ErrCountMismatch, stats.Mismatched, len(outcomes))
	}
	log.Info(ctx, "simulation completed successfully")
	return nil
}

func loadScript(cfg *Config) (*Script, error) {
	if cfg.ScriptFile != "" {
		return LoadScript(cfg.ScriptFile)
	}
	s := DefaultScript(cfg.Reps, cfg.PhaseLen)
	s.Jitter = MaxJitter / 2
	return s, s.Validate()
}

func runSession(ctx context.Context, cfg *Config, client *Client, script *Script, rng *rand.Rand, c *counters) (Outcome, error) {
	view, err := client.CreateSession(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("create session: %w", err)
	}
	frames := script.Frames(framePrefix(view.ID), time.Now(), rng)

	var applied int64
	for i := range frames {
		c.submitted.Add(1)
		res, err := client.PostFrame(ctx, view.ID, &frames[i], cfg.Async)
		switch {
		case err != nil:
			c.failed.Add(1)
			if cfg.Verbose {
				logger.Get().Warn(ctx, "frame failed",
					logger.String("session_id", view.ID),
					logger.String("frame_id", frames[i].FrameID),
					logger.Error(err))
			}
		case res.Duplicate:
			c.duplicate.Add(1)
		default:
			c.accepted.Add(1)
			applied++
		}
	}

	if cfg.Async {
		view, err = waitApplied(ctx, client, view.ID, applied, cfg.Settle)
	} else {
		view, err = client.Session(ctx, view.ID)
	}
	if err != nil {
		return Outcome{}, err
	}
	if err := client.DeleteSession(ctx, view.ID); err != nil {
		logger.Get().Warn(ctx, "failed to delete session", logger.String("session_id", view.ID), logger.Error(err))
	}
	return Outcome{
		SessionID: view.ID,
		Expected:  script.ExpectedCount(),
		Counted:   view.Count,
		Frames:    view.Frames,
		Rejected:  view.Rejected,
		Cadence:   view.Cadence,
	}, nil
}

func framePrefix(id string) string {
	const n = 8
	if len(id) > n {
		return id[:n]
	}
	return id
}

// waitApplied polls until the session has applied want frames or settle
// elapses, and returns the last view either way.
func waitApplied(ctx context.Context, client *Client, id string, want int64, settle time.Duration) (view types.SessionView, err error) {
	deadline := time.Now().Add(settle)
	for {
		view, err = client.Session(ctx, id)
		if err != nil || view.Frames >= want || time.Now().After(deadline) {
			return view, err
		}
		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, framesPerSecond float64
	if stats.FramesSubmitted > 0 {
		acceptRate = float64(stats.FramesAccepted) / float64(stats.FramesSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		framesPerSecond = float64(stats.FramesSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("sessions", stats.Sessions),
		logger.Int("framesGenerated", stats.FramesGenerated),
		logger.Int("framesSubmitted", stats.FramesSubmitted),
		logger.Int("framesAccepted", stats.FramesAccepted),
		logger.Int("framesDuplicate", stats.FramesDuplicate),
		logger.Int("framesFailed", stats.FramesFailed),
		logger.String("verified", strconv.Itoa(stats.Verified)+"/"+strconv.Itoa(stats.Sessions)),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("framesPerSecond", framesPerSecond),
	)
}
