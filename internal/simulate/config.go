package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Sessions   int           // Number of concurrent sessions
	Reps       int           // Repetitions per session for the built-in script
	PhaseLen   int           // Frames per up/down phase for the built-in script
	ScriptFile string        // Optional YAML script replacing the built-in one
	Async      bool          // Submit frames through the queue instead of inline
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // How long to wait for queued frames to be applied
	Seed       int64         // Jitter seed; 0 picks one from the clock
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	Sessions        int
	FramesGenerated int
	FramesSubmitted int
	FramesAccepted  int
	FramesDuplicate int
	FramesFailed    int
	Verified        int
	Mismatched      int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// Outcome is the verification result for one session.
type Outcome struct {
	SessionID string
	Expected  int
	Counted   int
	Frames    int64
	Rejected  int64
	Cadence   float64
}

// OK reports whether the service counted what the script implies.
func (o Outcome) OK() bool {
	return o.Expected == o.Counted
}
