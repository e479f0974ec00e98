// Package pose models the body keypoints produced by a single-person pose
// estimator (MoveNet / COCO 17-point layout) and the subset of them used for
// jumping-jack classification.
package pose

import (
	"fmt"
	"math"
)

// COCO 17-point indices of the roles the classifier reads.
const (
	COCOLeftShoulder  = 5
	COCORightShoulder = 6
	COCOLeftWrist     = 9
	COCORightWrist    = 10
	COCOLeftHip       = 11
	COCORightHip      = 12
	COCOLeftAnkle     = 15
	COCORightAnkle    = 16
	COCOKeypointCount = 17
)

// Keypoint is a planar landmark in image space (y grows downward) with the
// model's confidence score in [0,1].
type Keypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Distance returns the Euclidean distance between two keypoints.
func Distance(a, b Keypoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Role names one of the eight keypoints a Sample carries.
type Role int

// Roles in Sample field order.
const (
	LeftShoulder Role = iota
	RightShoulder
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftAnkle
	RightAnkle
	roleCount
)

var roleNames = [roleCount]string{
	"left_shoulder", "right_shoulder",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_ankle", "right_ankle",
}

var roleIndex = [roleCount]int{
	COCOLeftShoulder, COCORightShoulder,
	COCOLeftWrist, COCORightWrist,
	COCOLeftHip, COCORightHip,
	COCOLeftAnkle, COCORightAnkle,
}

// Roles lists every role in Sample field order.
func Roles() []Role {
	out := make([]Role, roleCount)
	for i := range out {
		out[i] = Role(i)
	}
	return out
}

func (r Role) String() string {
	if r < 0 || r >= roleCount {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// MarshalText renders the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// COCOIndex returns the role's position in a 17-point keypoint array.
func (r Role) COCOIndex() int {
	return roleIndex[r]
}

// Sample is the set of keypoints one classification reads, one field per role.
type Sample struct {
	LeftShoulder  Keypoint
	RightShoulder Keypoint
	LeftWrist     Keypoint
	RightWrist    Keypoint
	LeftHip       Keypoint
	RightHip      Keypoint
	LeftAnkle     Keypoint
	RightAnkle    Keypoint
}

// FromCOCO17 picks the eight classifier roles out of a 17-point array.
func FromCOCO17(kps []Keypoint) (Sample, error) {
	if len(kps) != COCOKeypointCount {
		return Sample{}, fmt.Errorf("%w: got %d, want %d", ErrKeypointCount, len(kps), COCOKeypointCount)
	}
	return Sample{
		LeftShoulder:  kps[COCOLeftShoulder],
		RightShoulder: kps[COCORightShoulder],
		LeftWrist:     kps[COCOLeftWrist],
		RightWrist:    kps[COCORightWrist],
		LeftHip:       kps[COCOLeftHip],
		RightHip:      kps[COCORightHip],
		LeftAnkle:     kps[COCOLeftAnkle],
		RightAnkle:    kps[COCORightAnkle],
	}, nil
}

// Get returns the keypoint stored for role.
func (s *Sample) Get(r Role) Keypoint {
	switch r {
	case LeftShoulder:
		return s.LeftShoulder
	case RightShoulder:
		return s.RightShoulder
	case LeftWrist:
		return s.LeftWrist
	case RightWrist:
		return s.RightWrist
	case LeftHip:
		return s.LeftHip
	case RightHip:
		return s.RightHip
	case LeftAnkle:
		return s.LeftAnkle
	case RightAnkle:
		return s.RightAnkle
	}
	return Keypoint{}
}

// Set stores kp for role. Unknown roles are ignored.
func (s *Sample) Set(r Role, kp Keypoint) {
	switch r {
	case LeftShoulder:
		s.LeftShoulder = kp
	case RightShoulder:
		s.RightShoulder = kp
	case LeftWrist:
		s.LeftWrist = kp
	case RightWrist:
		s.RightWrist = kp
	case LeftHip:
		s.LeftHip = kp
	case RightHip:
		s.RightHip = kp
	case LeftAnkle:
		s.LeftAnkle = kp
	case RightAnkle:
		s.RightAnkle = kp
	}
}

// COCO17 expands the sample back into a 17-point array. Roles the sample does
// not carry are zero keypoints.
func (s *Sample) COCO17() []Keypoint {
	out := make([]Keypoint, COCOKeypointCount)
	for _, r := range Roles() {
		out[r.COCOIndex()] = s.Get(r)
	}
	return out
}
