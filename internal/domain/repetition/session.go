package repetition

import "time"

// Session is the mutable per-capture state of one counter run. The zero
// value is a fresh session. It is not safe for concurrent use; callers own it
// and pass it to Counter.Process one frame at a time.
type Session struct {
	// Previous is the confirmed state before Current.
	Previous BodyState
	// Current is the last confirmed (non-indeterminate) state.
	Current BodyState
	// Count is the number of completed cycles. It never decreases.
	Count int
	// Anchor is when the first Down -> Up edge of this run was seen.
	// Zero until then.
	Anchor time.Time
	// Cadence is the cumulative repetition rate at the last completion.
	Cadence float64

	// upArmed is set by a Down -> Up edge and cleared when that up-phase
	// completes; only an armed Up -> Down counts.
	upArmed bool
}

// Reset returns the session to its initial state.
func (s *Session) Reset() {
	*s = Session{}
}

// UpPhaseOpen reports whether a Down -> Up edge is waiting for its Up -> Down.
func (s *Session) UpPhaseOpen() bool {
	return s.upArmed
}
