package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"

	"github.com/okian/jackcount/internal/adapters/http/api"
	"github.com/okian/jackcount/internal/adapters/http/swagger"
	"github.com/okian/jackcount/internal/adapters/mq/worker"
	"github.com/okian/jackcount/internal/adapters/stream"
	app "github.com/okian/jackcount/internal/app"
	"github.com/okian/jackcount/internal/config"
	"github.com/okian/jackcount/internal/domain/repetition"
	"github.com/okian/jackcount/pkg/logger"
	"github.com/okian/jackcount/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
	natsClientName            = "jackcount"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithFile(cfg.LogFile)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(context.Background(), "jackcount exited with errors", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run starts every component and blocks until ctx is done, then shuts them
// down in reverse order.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	var nc *nats.Conn
	var publisher worker.Publisher
	if cfg.NATSURL != "" {
		conn, err := stream.Connect(cfg.NATSURL, natsClientName)
		if err != nil {
			return err
		}
		nc = conn
		defer nc.Close()
		publisher = stream.NewPublisher(nc, cfg.NATSResultsSubject)
		log.Info(ctx, "connected to NATS", logger.String("url", cfg.NATSURL))
	}

	svc, err := newService(cfg, publisher, log)
	if err != nil {
		return err
	}
	// Workers outlive ctx so Stop can drain the queue.
	if err := svc.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	var sub *stream.Subscriber
	if nc != nil {
		sub = stream.NewSubscriber(nc, cfg.NATSFramesSubject, svc)
		if err := sub.Start(ctx); err != nil {
			return multierr.Append(err, svc.Stop(context.Background()))
		}
	}

	go startSystemMetricsUpdater(ctx)

	srv := newHTTPServer(cfg.Addr, newRouter(svc))
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	// Pending NATS frames must reach the queue before it closes.
	if sub != nil {
		err = multierr.Append(err, sub.Stop(shutdownCtx))
	}
	err = multierr.Append(err, svc.Stop(shutdownCtx))
	log.Info(shutdownCtx, "server stopped")
	return err
}

// newService builds the counter service from configuration.
func newService(cfg *config.Config, publisher worker.Publisher, log logger.Logger) (*app.Service, error) {
	unit, err := repetition.ParseCadenceUnit(cfg.CadenceUnit)
	if err != nil {
		return nil, err
	}
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.FrameQueueSize),
		app.WithShardCount(cfg.ShardCount),
		app.WithMaxSessions(cfg.MaxSessions),
		app.WithDedupeCacheBytes(cfg.DedupeCacheBytes),
		app.WithDedupeTTL(time.Duration(cfg.DedupeTTLSeconds) * time.Second),
		app.WithConfidenceThreshold(cfg.ConfidenceThreshold),
		app.WithThresholds(repetition.Thresholds{
			LegRatioUp:   cfg.LegRatioUp,
			LegRatioDown: cfg.LegRatioDown,
			MinHipWidth:  cfg.MinHipWidth,
		}),
		app.WithCadenceUnit(unit),
	}
	if publisher != nil {
		opts = append(opts, app.WithPublisher(publisher))
	}
	return app.New(opts...), nil
}

// newRouter mounts the business API and the API docs.
func newRouter(svc api.Dependencies) chi.Router {
	r := api.NewRouter(svc)
	swagger.Register(r)
	return r
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
