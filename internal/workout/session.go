// Package workout holds the per-device workout session state and the sources
// that turn a session into a performance metrics record.
package workout

import "time"

// State is the lifecycle state of a session.
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

// Session is the mutable workout state of one device. It is not safe for
// concurrent use; the registry serializes access.
type Session struct {
	StartTime     time.Time
	EndTime       time.Time // zero while active or never stopped
	Reps          int
	Active        bool
	BaseHeartRate int
	LastActivity  time.Time

	lastRepTick time.Time
}

// NewSession returns an idle session whose clock starts at now.
func NewSession(now time.Time) *Session {
	return &Session{StartTime: now, LastActivity: now}
}

// State reports the lifecycle state. A nil session is uninitialized.
func (s *Session) State() State {
	switch {
	case s == nil:
		return StateUninitialized
	case s.Active:
		return StateActive
	default:
		return StateIdle
	}
}

// Start moves the session to active and resets its counters. Starting an
// active session resets it again.
func (s *Session) Start(now time.Time) {
	s.Active = true
	s.StartTime = now
	s.EndTime = time.Time{}
	s.Reps = 0
	s.lastRepTick = now
	s.LastActivity = now
}

// Stop moves the session to idle. Counters are kept for display and the
// duration is frozen. It reports whether the session was active.
func (s *Session) Stop(now time.Time) bool {
	wasActive := s.Active
	s.Active = false
	if wasActive {
		s.EndTime = now
	}
	s.LastActivity = now
	return wasActive
}

// RecordReps raises the rep count to n. Lower values are ignored.
func (s *Session) RecordReps(n int, now time.Time) bool {
	s.LastActivity = now
	if n <= s.Reps {
		return false
	}
	s.Reps = n
	return true
}

// Duration is the elapsed workout time in whole seconds.
func (s *Session) Duration(now time.Time) int {
	end := now
	if !s.Active && !s.EndTime.IsZero() {
		end = s.EndTime
	}
	d := int(end.Sub(s.StartTime) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// Calories estimates energy burned from duration and reps.
func Calories(durationSec, reps int) int {
	return int(0.15*float64(durationSec) + 1.2*float64(reps))
}

// Summary is a read-only copy of a session.
type Summary struct {
	State     State
	StartTime time.Time
	EndTime   time.Time
	Duration  int
	Reps      int
	Calories  int
}

// Summarize returns a snapshot of the session at now.
func (s *Session) Summarize(now time.Time) Summary {
	d := s.Duration(now)
	return Summary{
		State:     s.State(),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Duration:  d,
		Reps:      s.Reps,
		Calories:  Calories(d, s.Reps),
	}
}
