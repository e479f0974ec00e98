package simulate

import (
	"fmt"
	"math/rand"

	"github.com/okian/jackcount/internal/domain/pose"
)

// Kind names a synthetic body pose.
type Kind string

// Synthetic poses. Between is arms up with legs together, the mid-point of a
// jump that must never be classified. Occluded is Down with the ankles below
// any sensible confidence threshold.
const (
	KindUp       Kind = "up"
	KindDown     Kind = "down"
	KindBetween  Kind = "between"
	KindOccluded Kind = "occluded"
)

// ParseKind validates a pose name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindUp, KindDown, KindBetween, KindOccluded:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown pose %q", ErrBadScript, s)
}

// Frame geometry in a 640x480 image. Hip width is 100 px, so the leg ratio is
// ankle half-width / 50.
const (
	centerX        = 320.0
	headY          = 80.0
	shoulderY      = 150.0
	shoulderHalf   = 60.0
	hipY           = 260.0
	hipHalf        = 50.0
	kneeY          = 350.0
	ankleY         = 440.0
	wristUpY       = 60.0
	wristUpHalf    = 120.0
	wristDownY     = 250.0
	wristDownHalf  = 70.0
	anklesApart    = 100.0 // ratio 2.0
	anklesTogether = 40.0  // ratio 0.8

	// MaxJitter keeps every synthetic pose on the same side of the default
	// leg ratio thresholds.
	MaxJitter = 5.0

	baseScore     = 0.9
	occludedScore = 0.1
)

// Pose returns a 17-point COCO keypoint array for kind. Every coordinate is
// moved by up to jitter pixels; rng may be nil when jitter is zero.
func Pose(kind Kind, rng *rand.Rand, jitter float64) []pose.Keypoint {
	if jitter > MaxJitter {
		jitter = MaxJitter
	}
	if jitter < 0 || rng == nil {
		jitter = 0
	}

	armsUp := kind == KindUp || kind == KindBetween
	legsApart := kind == KindUp

	wristY, wristHalf := wristDownY, wristDownHalf
	if armsUp {
		wristY, wristHalf = wristUpY, wristUpHalf
	}
	ankleHalf := anklesTogether
	if legsApart {
		ankleHalf = anklesApart
	}
	ankleScore := baseScore
	if kind == KindOccluded {
		ankleScore = occludedScore
	}

	kps := make([]pose.Keypoint, pose.COCOKeypointCount)
	set := func(i int, x, y, score float64) {
		if jitter > 0 {
			x += (rng.Float64()*2 - 1) * jitter
			y += (rng.Float64()*2 - 1) * jitter
		}
		kps[i] = pose.Keypoint{X: x, Y: y, Score: score}
	}

	// Face: nose, eyes, ears.
	set(0, centerX, headY, 0.8)
	set(1, centerX-10, headY-8, 0.8)
	set(2, centerX+10, headY-8, 0.8)
	set(3, centerX-22, headY, 0.7)
	set(4, centerX+22, headY, 0.7)

	set(pose.COCOLeftShoulder, centerX-shoulderHalf, shoulderY, baseScore)
	set(pose.COCORightShoulder, centerX+shoulderHalf, shoulderY, baseScore)
	set(7, centerX-(shoulderHalf+wristHalf)/2, (shoulderY+wristY)/2, 0.85)
	set(8, centerX+(shoulderHalf+wristHalf)/2, (shoulderY+wristY)/2, 0.85)
	set(pose.COCOLeftWrist, centerX-wristHalf, wristY, baseScore)
	set(pose.COCORightWrist, centerX+wristHalf, wristY, baseScore)
	set(pose.COCOLeftHip, centerX-hipHalf, hipY, baseScore)
	set(pose.COCORightHip, centerX+hipHalf, hipY, baseScore)
	set(13, centerX-(hipHalf+ankleHalf)/2, kneeY, 0.85)
	set(14, centerX+(hipHalf+ankleHalf)/2, kneeY, 0.85)
	set(pose.COCOLeftAnkle, centerX-ankleHalf, ankleY, ankleScore)
	set(pose.COCORightAnkle, centerX+ankleHalf, ankleY, ankleScore)
	return kps
}
