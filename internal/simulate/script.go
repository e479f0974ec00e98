package simulate

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/okian/jackcount/internal/domain/types"
	"gopkg.in/yaml.v3"
)

// Phase holds one pose for a number of consecutive frames.
type Phase struct {
	Pose   Kind `yaml:"pose"`
	Frames int  `yaml:"frames"`
}

// Script is a named sequence of phases. Expected, when set, overrides the
// count derived from the phases.
type Script struct {
	Name     string  `yaml:"name"`
	FPS      float64 `yaml:"fps"`
	Jitter   float64 `yaml:"jitter"`
	Phases   []Phase `yaml:"phases"`
	Expected *int    `yaml:"expected,omitempty"`
}

const defaultFPS = 30.0

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	s := &Script{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultScript returns reps full cycles: a leading Down, then Up and Down
// alternating, each held for framesPerPhase frames with a short "between"
// transition in the middle of every edge.
func DefaultScript(reps, framesPerPhase int) *Script {
	if framesPerPhase < 1 {
		framesPerPhase = 1
	}
	s := &Script{
		Name:   "default-" + strconv.Itoa(reps),
		FPS:    defaultFPS,
		Phases: []Phase{{Pose: KindDown, Frames: framesPerPhase}},
	}
	for i := 0; i < reps; i++ {
		s.Phases = append(s.Phases,
			Phase{Pose: KindBetween, Frames: 1},
			Phase{Pose: KindUp, Frames: framesPerPhase},
			Phase{Pose: KindBetween, Frames: 1},
			Phase{Pose: KindDown, Frames: framesPerPhase},
		)
	}
	return s
}

// Validate checks pose names, frame counts and jitter.
func (s *Script) Validate() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("%w: no phases", ErrBadScript)
	}
	if s.FPS < 0 {
		return fmt.Errorf("%w: fps must not be negative", ErrBadScript)
	}
	if s.Jitter < 0 || s.Jitter > MaxJitter {
		return fmt.Errorf("%w: jitter must be within [0, %g]", ErrBadScript, MaxJitter)
	}
	for i, p := range s.Phases {
		if _, err := ParseKind(string(p.Pose)); err != nil {
			return fmt.Errorf("phase %d: %w", i, err)
		}
		if p.Frames < 1 {
			return fmt.Errorf("%w: phase %d has no frames", ErrBadScript, i)
		}
	}
	if s.Expected != nil && *s.Expected < 0 {
		return fmt.Errorf("%w: expected must not be negative", ErrBadScript)
	}
	return nil
}

// FrameCount returns the total number of frames the script produces.
func (s *Script) FrameCount() int {
	n := 0
	for _, p := range s.Phases {
		n += p.Frames
	}
	return n
}

// ExpectedCount returns the number of repetitions a correct counter reports
// for the script. A cycle is a Down phase, then Up, then Down again; between
// and occluded phases never change the body state.
func (s *Script) ExpectedCount() int {
	if s.Expected != nil {
		return *s.Expected
	}
	var (
		current Kind
		armed   bool
		count   int
	)
	for _, p := range s.Phases {
		switch p.Pose {
		case KindUp:
			if current == KindDown {
				armed = true
			}
			current = KindUp
		case KindDown:
			if current == KindUp && armed {
				count++
				armed = false
			}
			current = KindDown
		}
	}
	return count
}

// Frames renders the script as frame requests. Frame ids are derived from
// prefix and the sequence number; timestamps advance by 1/FPS from start.
func (s *Script) Frames(prefix string, start time.Time, rng *rand.Rand) []types.FrameRequest {
	fps := s.FPS
	if fps <= 0 {
		fps = defaultFPS
	}

	out := make([]types.FrameRequest, 0, s.FrameCount())
	var seq int64
	for _, p := range s.Phases {
		for i := 0; i < p.Frames; i++ {
			ts := start.Add(time.Duration(float64(seq) * float64(time.Second) / fps))
			out = append(out, types.FrameRequest{
				FrameID:   prefix + "-" + strconv.FormatInt(seq, 10),
				Seq:       seq,
				TS:        &ts,
				Keypoints: Pose(p.Pose, rng, s.Jitter),
			})
			seq++
		}
	}
	return out
}
