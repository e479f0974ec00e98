package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/jackcount/internal/simulate"
)

// Default configuration constants.
const (
	defaultSessions = 4
	defaultReps     = 10
	defaultPhaseLen = 6
	defaultTimeout  = 10 * time.Second
	defaultSettle   = 10 * time.Second
	defaultRunLimit = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		sessions = flag.Int("sessions", defaultSessions, "Number of concurrent sessions")
		reps     = flag.Int("reps", defaultReps, "Repetitions per session for the built-in script")
		phaseLen = flag.Int("phase", defaultPhaseLen, "Frames per up/down phase for the built-in script")
		script   = flag.String("script", "", "YAML phase script")
		async    = flag.Bool("async", false, "Submit frames through the queue")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle   = flag.Duration("settle", defaultSettle, "Wait for queued frames to be applied")
		seed     = flag.Int64("seed", 0, "Jitter seed")
		logFile  = flag.String("log", "", "Log file (default: simulate_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:    *baseURL,
		Sessions:   *sessions,
		Reps:       *reps,
		PhaseLen:   *phaseLen,
		ScriptFile: *script,
		Async:      *async,
		Timeout:    *timeout,
		Settle:     *settle,
		Seed:       *seed,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := simulate.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
