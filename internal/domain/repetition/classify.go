package repetition

import (
	"github.com/okian/jackcount/internal/domain/pose"
)

// Default classification thresholds.
const (
	DefaultLegRatioUp   = 1.5
	DefaultLegRatioDown = 1.2
	DefaultMinHipWidth  = 1e-6
)

// Thresholds are the geometric cut-offs of the classifier. LegRatioUp and
// LegRatioDown form a hysteresis band: ratios between them are Indeterminate.
type Thresholds struct {
	LegRatioUp   float64
	LegRatioDown float64
	// MinHipWidth: hip widths at or below this are treated as degenerate.
	MinHipWidth float64
}

// DefaultThresholds returns the 1.5 / 1.2 band.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LegRatioUp:   DefaultLegRatioUp,
		LegRatioDown: DefaultLegRatioDown,
		MinHipWidth:  DefaultMinHipWidth,
	}
}

// Classification is the geometric reading of one sample.
type Classification struct {
	State      BodyState
	LegRatio   float64
	ArmsUp     bool
	Degenerate bool
}

// Classify labels a sample. It does not look at confidence scores.
func (t Thresholds) Classify(s *pose.Sample) Classification {
	shoulderHeight := (s.LeftShoulder.Y + s.RightShoulder.Y) / 2
	wristHeight := (s.LeftWrist.Y + s.RightWrist.Y) / 2
	// Image y grows downward.
	armsUp := wristHeight < shoulderHeight

	hipWidth := pose.Distance(s.LeftHip, s.RightHip)
	if hipWidth <= t.MinHipWidth {
		return Classification{State: Indeterminate, ArmsUp: armsUp, Degenerate: true}
	}
	legRatio := pose.Distance(s.LeftAnkle, s.RightAnkle) / hipWidth

	c := Classification{State: Indeterminate, LegRatio: legRatio, ArmsUp: armsUp}
	switch {
	case armsUp && legRatio > t.LegRatioUp:
		c.State = Up
	case !armsUp && legRatio < t.LegRatioDown:
		c.State = Down
	}
	return c
}
