// Package types contains the JSON views shared by the HTTP and stream adapters.
package types

import (
	"time"

	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/internal/domain/pose"
)

// SessionView is the externally visible state of one counting session.
type SessionView struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Previous    string     `json:"previous"`
	Count       int        `json:"count"`
	Cadence     float64    `json:"cadence"`
	CadenceUnit string     `json:"cadence_unit"`
	Anchor      *time.Time `json:"anchor,omitempty"`
	UpPhaseOpen bool       `json:"up_phase_open"`
	Frames      int64      `json:"frames"`
	Rejected    int64      `json:"rejected_frames"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	SessionID   string    `json:"session_id"`
	FrameID     string    `json:"frame_id,omitempty"`
	Seq         int64     `json:"seq"`
	Outcome     string    `json:"outcome"`
	Confident   bool      `json:"confident"`
	Rejected    []string  `json:"rejected,omitempty"`
	Classified  string    `json:"classified"`
	State       string    `json:"state"`
	LegRatio    float64   `json:"leg_ratio"`
	ArmsUp      bool      `json:"arms_up"`
	Count       int       `json:"count"`
	Cadence     float64   `json:"cadence"`
	Counted     bool      `json:"counted"`
	Duplicate   bool      `json:"duplicate,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Stats summarises the running service.
type Stats struct {
	ActiveSessions  int     `json:"active_sessions"`
	QueueSize       int     `json:"queue_size"`
	QueueCapacity   int     `json:"queue_capacity"`
	QueuePartitions int     `json:"queue_partitions"`
	Workers         int     `json:"workers"`
	FramesProcessed int64   `json:"frames_processed"`
	Repetitions     int64   `json:"repetitions"`
	Duplicates      int64   `json:"duplicates"`
	DedupeEntries   int64   `json:"dedupe_entries"`
	Threshold       float64 `json:"confidence_threshold"`
	CadenceUnit     string  `json:"cadence_unit"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// FrameRequest is the wire form of a submitted frame, shared by the HTTP API
// and the NATS subscriber. SessionID is only read from stream messages.
type FrameRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	FrameID   string          `json:"frame_id,omitempty"`
	Seq       int64           `json:"seq"`
	TS        *time.Time      `json:"ts,omitempty"`
	Keypoints []pose.Keypoint `json:"keypoints"`
}

// Frame converts the request into a domain frame for sessionID.
func (r *FrameRequest) Frame(sessionID string) model.Frame {
	f := model.Frame{
		FrameID:   r.FrameID,
		SessionID: sessionID,
		Seq:       r.Seq,
		Keypoints: r.Keypoints,
	}
	if r.TS != nil {
		f.CapturedAt = *r.TS
	}
	return f
}
