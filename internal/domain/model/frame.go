// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/jackcount/internal/domain/pose"
)

// Frame is one pose estimate submitted for a session.
type Frame struct {
	FrameID    string          // optional id for idempotency
	SessionID  string          // session the frame belongs to
	Seq        int64           // client sequence number, informational
	CapturedAt time.Time       // capture time; zero means "use the processing clock"
	Keypoints  []pose.Keypoint // COCO 17-point layout
}

// Sample extracts the classifier roles from the frame's keypoints.
func (f *Frame) Sample() (pose.Sample, error) {
	return pose.FromCOCO17(f.Keypoints)
}

// Timestamp returns CapturedAt, or now when the frame carries no capture time.
func (f *Frame) Timestamp(now time.Time) time.Time {
	if f.CapturedAt.IsZero() {
		return now
	}
	return f.CapturedAt
}
