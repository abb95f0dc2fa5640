package registry

import (
	"time"

	"github.com/seandooa/cg4002-capstone-code/internal/workout"
)

// SetExercise records the exercise chosen for an open device.
func (r *Registry) SetExercise(deviceID, exercise string, now time.Time) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.openLocked(deviceID)
	if d == nil {
		return Target{}, false
	}
	d.exercise = exercise
	return r.targetLocked(d, now), true
}

// StartWorkout starts (or restarts) the session of an open device.
func (r *Registry) StartWorkout(deviceID string, now time.Time) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.openLocked(deviceID)
	if d == nil {
		return Target{}, false
	}
	r.sessionLocked(deviceID, now).Start(now)
	return r.targetLocked(d, now), true
}

// StopWorkout stops the session of an open device, keeping its counters.
func (r *Registry) StopWorkout(deviceID string, now time.Time) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.openLocked(deviceID)
	if d == nil {
		return Target{}, false
	}
	wasActive := r.sessionLocked(deviceID, now).Stop(now)
	t := r.targetLocked(d, now)
	t.WasActive = wasActive
	return t, true
}

// RecordReps raises the rep count of an active session. It reports whether
// the count changed.
func (r *Registry) RecordReps(deviceID string, reps int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[deviceID]
	if s == nil || !s.Active {
		return false
	}
	return s.RecordReps(reps, now)
}

// Session returns a snapshot of a device's session.
func (r *Registry) Session(deviceID string, now time.Time) (workout.Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[deviceID]
	if s == nil {
		return workout.Summary{}, false
	}
	return s.Summarize(now), true
}

// Sample computes one metrics record for every open device, creating
// sessions on first use. HasMetrics is false when the source had nothing. The returned deliveries are sent by the caller
// after the lock is released.
func (r *Registry) Sample(src workout.Source, now time.Time) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Delivery
	for _, d := range r.sortedLocked() {
		if !d.conn.Open() {
			continue
		}
		m, ok := src.Sample(r.sessionLocked(d.id, now), now)
		out = append(out, Delivery{DeviceID: d.id, ExerciseType: d.exercise, Conn: d.conn, Metrics: m, HasMetrics: ok})
	}
	return out
}

// EvictSessions drops sessions of devices that have been offline for longer
// than ttl. A zero ttl keeps sessions forever. It returns the number evicted.
func (r *Registry) EvictSessions(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if _, bound := r.devices[id]; bound {
			continue
		}
		since, ok := r.offlineSince[id]
		if !ok {
			since = s.LastActivity
		}
		if now.Sub(since) > ttl {
			delete(r.sessions, id)
			delete(r.offlineSince, id)
			n++
		}
	}
	return n
}
