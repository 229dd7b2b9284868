package turn

import "time"

// IdleScheduler times the idle blink. It only holds the last fire time and
// is independent of the turn state.
type IdleScheduler struct {
	interval time.Duration
	last     time.Time
	fired    int
}

// NewIdleScheduler starts the timer at now. A non-positive interval
// disables blinking.
func NewIdleScheduler(interval time.Duration, now time.Time) *IdleScheduler {
	return &IdleScheduler{interval: interval, last: now}
}

// Due reports whether more than the interval has elapsed since the last blink.
func (s *IdleScheduler) Due(now time.Time) bool {
	return s.interval > 0 && now.Sub(s.last) > s.interval
}

// Reset records a blink at now.
func (s *IdleScheduler) Reset(now time.Time) {
	s.last = now
	s.fired++
}

// Last returns the time of the last blink, or the start time.
func (s *IdleScheduler) Last() time.Time { return s.last }

// Fired returns how many blinks were recorded.
func (s *IdleScheduler) Fired() int { return s.fired }

// Interval returns the configured interval.
func (s *IdleScheduler) Interval() time.Duration { return s.interval }
