// Package repetition turns gated pose samples into a jumping-jack count.
//
// A Counter classifies each sample as Up (arms raised, legs apart), Down
// (arms lowered, legs together) or Indeterminate, keeps the last confirmed
// state in a caller-owned Session, and counts one repetition per
// Down -> Up -> Down cycle.
package repetition

import (
	"fmt"
	"strings"
)

// BodyState is the classification label of a frame or session.
type BodyState int

// Body states. Indeterminate is the zero value and the initial session state.
const (
	Indeterminate BodyState = iota
	Down
	Up
)

func (s BodyState) String() string {
	switch s {
	case Indeterminate:
		return "indeterminate"
	case Down:
		return "down"
	case Up:
		return "up"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name.
func (s BodyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses "up", "down" or "indeterminate".
func (s *BodyState) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "indeterminate", "":
		*s = Indeterminate
	case "down":
		*s = Down
	case "up":
		*s = Up
	default:
		return fmt.Errorf("unknown body state %q", b)
	}
	return nil
}

// Outcome summarises what a frame did to a session.
type Outcome string

// Frame outcomes.
const (
	OutcomeLowConfidence Outcome = "low_confidence"
	OutcomeDegenerate    Outcome = "degenerate"
	OutcomeIndeterminate Outcome = "indeterminate"
	OutcomeHeld          Outcome = "held"
	OutcomeTransition    Outcome = "transition"
	OutcomeRepetition    Outcome = "repetition"
)
