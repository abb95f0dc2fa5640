package feed

import (
	"sync"

	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
	"github.com/seandooa/cg4002-capstone-code/internal/workout"
)

// Edges reports which command-worthy fields changed with a record.
type Edges struct {
	Exercise bool
	Started  bool
}

// Tracker keeps the latest feed record, the last valid form label and the
// edge-detection state. It is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	outageLimit int

	latest    Record
	hasLatest bool

	label    string // last valid label, "" if none yet
	failures int    // consecutive failed polls
	expired  bool   // outage reached the limit; cleared by a valid record

	primed      bool
	prevCode    int
	prevStarted bool
}

// NewTracker returns a tracker that stops replaying the last label after
// outageLimit consecutive failures. Zero replays forever.
func NewTracker(outageLimit int) *Tracker {
	return &Tracker{outageLimit: outageLimit}
}

// Observe records a successfully fetched record and reports which fields
// changed since the previous one. The first record after a reset reports
// both edges. recovered is true when it ends a run of failures.
func (t *Tracker) Observe(rec Record) (edges Edges, recovered bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recovered = t.failures > 0
	t.failures = 0
	t.latest, t.hasLatest = rec, true
	if rec.Valid {
		t.label = rec.Label
		t.expired = false
	}

	if !t.primed || rec.Code != t.prevCode {
		edges.Exercise = true
	}
	if !t.primed || rec.Started != t.prevStarted {
		edges.Started = true
	}
	t.primed = true
	t.prevCode, t.prevStarted = rec.Code, rec.Started
	return edges, recovered
}

// Fail records a failed poll and returns the consecutive failure count.
func (t *Tracker) Fail() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
	if t.outageLimit > 0 && t.failures >= t.outageLimit {
		t.expired = true
	}
	return t.failures
}

// ResetEdges makes the next record report both edges again.
func (t *Tracker) ResetEdges() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primed = false
}

// Current returns the label to show and its feedback status. A label that
// was never valid yields "Error", as does an outage that reached the limit
// until the next valid record.
func (t *Tracker) Current() (label, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.label == "" || t.expired {
		return LabelError, protocol.StatusError
	}
	if t.label == LabelBad {
		return t.label, protocol.StatusWarning
	}
	return t.label, protocol.StatusGood
}

// Latest returns the heart rate and reps of the newest record. It reports
// false while the feed is failing so stale readings are not relayed.
func (t *Tracker) Latest() (workout.Reading, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasLatest || t.failures > 0 {
		return workout.Reading{}, false
	}
	return workout.Reading{HeartRate: t.latest.HeartRate, Reps: t.latest.Reps}, true
}

// Record returns the newest record.
func (t *Tracker) Record() (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.hasLatest
}
