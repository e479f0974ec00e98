package simulate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/jackcount/pkg/logger"
)

// SetupLogging logs to stdout and to a rotated file. If logFile is empty, a
// timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "simulate_" + time.Now().Format("20060102_150405") + ".log"
	}
	if err := logger.Init(logger.WithFile(logFile)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return err
		}
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Jackcount Simulation Tool
=========================

Drives a running counter with synthetic jumping-jack keypoints and checks
that every session reports the expected number of repetitions.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -sessions int
        Number of concurrent sessions (default 4)
  -reps int
        Repetitions per session for the built-in script (default 10)
  -phase int
        Frames per up/down phase for the built-in script (default 6)
  -script string
        YAML phase script to use instead of the built-in one
  -async
        Submit frames through the queue (202) instead of inline (200)
  -timeout duration
        HTTP request timeout (default 10s)
  -settle duration
        How long to wait for queued frames to be applied (default 10s)
  -seed int
        Jitter seed (default: time based)
  -log string
        Log file (default: simulate_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Script format:
  name: wide-stance
  fps: 30
  jitter: 2
  phases:
    - {pose: down, frames: 10}
    - {pose: up, frames: 10}
    - {pose: occluded, frames: 5}
    - {pose: down, frames: 10}
`)
}
