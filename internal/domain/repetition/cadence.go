package repetition

import (
	"fmt"
	"time"
)

// CadenceUnit selects how cadence is scaled.
type CadenceUnit string

// Cadence units.
const (
	PerSecond CadenceUnit = "per_second"
	PerMinute CadenceUnit = "per_minute"
)

// ParseCadenceUnit validates a unit name. Empty selects PerSecond.
func ParseCadenceUnit(s string) (CadenceUnit, error) {
	switch CadenceUnit(s) {
	case "", PerSecond:
		return PerSecond, nil
	case PerMinute:
		return PerMinute, nil
	}
	return "", fmt.Errorf("unknown cadence unit %q", s)
}

// ToPerSecond converts a rate expressed in u to repetitions per second.
func (u CadenceUnit) ToPerSecond(rate float64) float64 {
	if u == PerMinute {
		return rate / 60
	}
	return rate
}

// cadence is the mean repetition rate since anchor: count / elapsed, scaled
// to the unit. A non-positive elapsed time yields zero.
func cadence(count int, anchor, now time.Time, unit CadenceUnit) float64 {
	elapsed := now.Sub(anchor).Seconds()
	if count <= 0 || anchor.IsZero() || elapsed <= 0 {
		return 0
	}
	rate := float64(count) / elapsed
	if unit == PerMinute {
		rate *= 60
	}
	return rate
}
