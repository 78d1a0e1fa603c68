// Package stopwatch implements the MilliSec Stopwatch timer used to drive
// per-connection heartbeats and timeouts.
package stopwatch

import "time"

// Stopwatch is a (last-check, threshold) pair. It is backed by time.Time,
// whose differences use the Go runtime's monotonic clock reading rather
// than wall-clock time, so it is immune to system clock adjustments.
type Stopwatch struct {
	lastCheck time.Time
	threshold time.Duration
}

// New creates a Stopwatch with the given threshold, starting its clock at
// now.
func New(now time.Time, threshold time.Duration) *Stopwatch {
	return &Stopwatch{lastCheck: now, threshold: threshold}
}

// DurationReached reports whether now-lastCheck has exceeded the threshold.
// If so, it resets lastCheck to now before returning true.
func (s *Stopwatch) DurationReached(now time.Time) bool {
	if now.Sub(s.lastCheck) > s.threshold {
		s.lastCheck = now
		return true
	}
	return false
}

// Reset sets the last-check time to now without checking the threshold.
func (s *Stopwatch) Reset(now time.Time) {
	s.lastCheck = now
}
