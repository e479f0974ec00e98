// Package config defines service configuration and its loading rules.
//
// Values are layered: defaults from New, an optional YAML file, then
// JACKCOUNT_ environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Cadence units accepted by cadence_unit.
const (
	CadencePerSecond = "per_second"
	CadencePerMinute = "per_minute"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`
	// LogFile, when set, also writes logs to a rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// FrameQueueSize bounds the in-memory frame queue (summed over partitions).
	FrameQueueSize int `koanf:"queue_size"`
	// WorkerCount is the number of queue partitions, one worker each.
	WorkerCount int `koanf:"worker_count"`
	// ShardCount configures the number of shards in the session store.
	ShardCount int `koanf:"shard_count"`
	// MaxSessions caps concurrently tracked sessions; 0 means unbounded.
	MaxSessions int `koanf:"max_sessions"`

	// DedupeCacheBytes sizes the frame_id dedupe cache.
	DedupeCacheBytes int `koanf:"dedupe_cache_bytes"`
	// DedupeTTLSeconds is how long a frame_id is remembered.
	DedupeTTLSeconds int `koanf:"dedupe_ttl_seconds"`

	// ConfidenceThreshold is the minimum keypoint score (tau).
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	// LegRatioUp: ankle/hip ratio must exceed this for Up.
	LegRatioUp float64 `koanf:"leg_ratio_up"`
	// LegRatioDown: ankle/hip ratio must be below this for Down.
	LegRatioDown float64 `koanf:"leg_ratio_down"`
	// MinHipWidth: hip widths at or below this are degenerate.
	MinHipWidth float64 `koanf:"min_hip_width"`
	// CadenceUnit is per_second or per_minute.
	CadenceUnit string `koanf:"cadence_unit"`

	// NATSURL enables the NATS frame stream when non-empty.
	NATSURL string `koanf:"nats_url"`
	// NATSFramesSubject is the subject frames are consumed from.
	NATSFramesSubject string `koanf:"nats_frames_subject"`
	// NATSResultsSubject prefixes the per-session result subjects.
	NATSResultsSubject string `koanf:"nats_results_subject"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		FrameQueueSize:      10_000,
		WorkerCount:         runtime.NumCPU(),
		ShardCount:          8,
		MaxSessions:         1_000,
		DedupeCacheBytes:    4 * 1024 * 1024,
		DedupeTTLSeconds:    60,
		ConfidenceThreshold: 0.4,
		LegRatioUp:          1.5,
		LegRatioDown:        1.2,
		MinHipWidth:         1e-6,
		CadenceUnit:         CadencePerSecond,
		NATSFramesSubject:   "jackcount.frames",
		NATSResultsSubject:  "jackcount.results",
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("%w: confidence_threshold must be within [0,1], got %v", ErrInvalidConfig, c.ConfidenceThreshold)
	case c.LegRatioDown <= 0:
		return fmt.Errorf("%w: leg_ratio_down must be positive, got %v", ErrInvalidConfig, c.LegRatioDown)
	case c.LegRatioUp < c.LegRatioDown:
		return fmt.Errorf("%w: leg_ratio_up (%v) must not be below leg_ratio_down (%v)", ErrInvalidConfig, c.LegRatioUp, c.LegRatioDown)
	case c.MinHipWidth < 0:
		return fmt.Errorf("%w: min_hip_width must not be negative", ErrInvalidConfig)
	case c.CadenceUnit != CadencePerSecond && c.CadenceUnit != CadencePerMinute:
		return fmt.Errorf("%w: unknown cadence_unit %q", ErrInvalidConfig, c.CadenceUnit)
	case c.NATSURL != "" && (c.NATSFramesSubject == "" || c.NATSResultsSubject == ""):
		return fmt.Errorf("%w: nats subjects must be set when nats_url is", ErrInvalidConfig)
	}
	return nil
}
