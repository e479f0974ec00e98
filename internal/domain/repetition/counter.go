package repetition

import (
	"time"

	"github.com/okian/jackcount/internal/domain/gate"
	"github.com/okian/jackcount/internal/domain/pose"
)

// Result reports the effect of one frame on a session.
type Result struct {
	Outcome Outcome
	// Confident is false when the gate rejected the frame.
	Confident bool
	// Rejected lists the roles that failed the gate.
	Rejected []pose.Role
	// Classified is this frame's own label.
	Classified BodyState
	LegRatio   float64
	ArmsUp     bool
	// State is the session's confirmed state after the frame.
	State    BodyState
	Previous BodyState
	Count    int
	Cadence  float64
	// Counted is true only on the frame that completed a repetition.
	Counted bool
}

// Option configures a Counter.
type Option func(*Counter)

// WithGate replaces the default 0.4 confidence gate.
func WithGate(g gate.Gate) Option {
	return func(c *Counter) {
		c.gate = g
	}
}

// WithThresholds replaces the default classification thresholds.
func WithThresholds(t Thresholds) Option {
	return func(c *Counter) {
		if t.LegRatioUp > 0 && t.LegRatioDown > 0 {
			c.thresholds = t
		}
	}
}

// WithCadenceUnit selects the cadence unit.
func WithCadenceUnit(u CadenceUnit) Option {
	return func(c *Counter) {
		if u == PerSecond || u == PerMinute {
			c.unit = u
		}
	}
}

// WithClock overrides time.Now for Process.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		if now != nil {
			c.now = now
		}
	}
}

// Counter is the stateless part of the repetition state machine: thresholds,
// gate, unit and clock. Every per-run value lives in the Session passed in,
// so one Counter can serve any number of sessions.
type Counter struct {
	gate       gate.Gate
	thresholds Thresholds
	unit       CadenceUnit
	now        func() time.Time
}

// NewCounter creates a Counter with defaults overridden by opts.
func NewCounter(opts ...Option) *Counter {
	c := &Counter{
		gate:       gate.New(gate.DefaultThreshold),
		thresholds: DefaultThresholds(),
		unit:       PerSecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gate returns the confidence gate.
func (c *Counter) Gate() gate.Gate {
	return c.gate
}

// Unit reports the cadence unit.
func (c *Counter) Unit() CadenceUnit {
	return c.unit
}

// Process feeds one frame into s using the counter's clock.
func (c *Counter) Process(s *Session, sample *pose.Sample) Result {
	return c.ProcessAt(s, sample, c.now())
}

// ProcessAt feeds one frame captured at now into s.
//
// Rejected, degenerate and indeterminate frames leave s untouched. A
// classification that differs from s.Current is a transition; Down -> Up
// opens an up-phase (anchoring cadence on the first one), and Up -> Down
// closes it and counts a repetition.
func (c *Counter) ProcessAt(s *Session, sample *pose.Sample, now time.Time) Result {
	res := Result{State: s.Current, Previous: s.Previous, Count: s.Count, Cadence: s.Cadence}

	v := c.gate.Check(sample)
	if !v.Confident {
		res.Outcome = OutcomeLowConfidence
		res.Rejected = v.Rejected
		return res
	}
	res.Confident = true

	cl := c.thresholds.Classify(sample)
	res.Classified = cl.State
	res.LegRatio = cl.LegRatio
	res.ArmsUp = cl.ArmsUp

	switch {
	case cl.Degenerate:
		res.Outcome = OutcomeDegenerate
		return res
	case cl.State == Indeterminate:
		res.Outcome = OutcomeIndeterminate
		return res
	case cl.State == s.Current:
		res.Outcome = OutcomeHeld
		return res
	}

	s.Previous, s.Current = s.Current, cl.State
	res.Outcome = OutcomeTransition

	switch {
	case s.Previous == Down && s.Current == Up:
		s.upArmed = true
		if s.Count == 0 {
			s.Anchor = now
		}
	case s.Previous == Up && s.Current == Down && s.upArmed:
		s.upArmed = false
		s.Count++
		s.Cadence = cadence(s.Count, s.Anchor, now, c.unit)
		res.Outcome = OutcomeRepetition
		res.Counted = true
	}

	res.State, res.Previous = s.Current, s.Previous
	res.Count, res.Cadence = s.Count, s.Cadence
	return res
}
