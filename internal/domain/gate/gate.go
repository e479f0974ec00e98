// Package gate decides whether a pose sample is trustworthy enough to classify.
package gate

import (
	"github.com/okian/jackcount/internal/domain/pose"
)

// DefaultThreshold is the minimum keypoint score used when none is configured.
const DefaultThreshold = 0.4

// Verdict is the outcome of a gate check.
type Verdict struct {
	// Confident is true when every required keypoint met the threshold.
	Confident bool
	// Rejected lists the roles below the threshold, in role order.
	Rejected []pose.Role
}

// Gate checks keypoint confidence against a fixed threshold.
type Gate struct {
	threshold float64
}

// New returns a Gate with the given threshold. Values outside [0,1] fall back
// to DefaultThreshold.
func New(threshold float64) Gate {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return Gate{threshold: threshold}
}

// Threshold reports the configured threshold.
func (g Gate) Threshold() float64 {
	return g.threshold
}

// Check reports whether all eight roles in s score at or above the threshold.
func (g Gate) Check(s *pose.Sample) Verdict {
	var rejected []pose.Role
	for _, r := range pose.Roles() {
		// NaN scores fail.
		if !(s.Get(r).Score >= g.threshold) {
			rejected = append(rejected, r)
		}
	}
	return Verdict{Confident: len(rejected) == 0, Rejected: rejected}
}
