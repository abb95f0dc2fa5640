package workout

import (
	"math/rand/v2"
	"time"

	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
)

const (
	heartRateCeiling = 180
	heartRateRise    = 60
	saturation       = 60 * time.Second
	repCadence       = 8 * time.Second
	repProbability   = 0.7
)

// Source turns a session into one metrics record. Sample runs inside the
// registry's critical section and must not block. It reports false when
// there is nothing to send this cycle.
type Source interface {
	Name() string
	Sample(s *Session, now time.Time) (protocol.Metrics, bool)
}

// Synthetic fabricates plausible metrics when no real biometrics are wired.
type Synthetic struct {
	rng *rand.Rand
}

// NewSynthetic returns a synthetic source. A nil rng uses a random seed.
func NewSynthetic(rng *rand.Rand) *Synthetic {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthetic{rng: rng}
}

func (*Synthetic) Name() string { return "synthetic" }

// Sample advances the synthetic rep cadence and computes heart rate.
func (g *Synthetic) Sample(s *Session, now time.Time) (protocol.Metrics, bool) {
	if s.BaseHeartRate == 0 {
		s.BaseHeartRate = 65 + g.rng.IntN(11)
	}

	duration := s.Duration(now)
	var hr int
	if s.Active {
		hr = ActiveHeartRate(s.BaseHeartRate, now.Sub(s.StartTime)) + g.jitter(5)
		hr = min(hr, heartRateCeiling)

		if now.Sub(s.lastRepTick) >= repCadence {
			s.lastRepTick = now
			if g.rng.Float64() < repProbability {
				s.Reps++
			}
		}
	} else {
		hr = s.BaseHeartRate + g.jitter(3)
	}

	return protocol.Metrics{
		HeartRate:       hr,
		Pulse:           hr + g.jitter(2),
		RepCount:        s.Reps,
		WorkoutDuration: duration,
		CaloriesBurned:  Calories(duration, s.Reps),
		Timestamp:       now.UnixMilli(),
	}, true
}

// jitter returns a uniform integer in [-n, n].
func (g *Synthetic) jitter(n int) int {
	return g.rng.IntN(2*n+1) - n
}

// ActiveHeartRate is the jitter-free heart rate after elapsed active time:
// rising linearly from base to base+60 over the first minute, then flat.
func ActiveHeartRate(base int, elapsed time.Duration) int {
	intensity := min(float64(elapsed)/float64(saturation), 1.0)
	if intensity < 0 {
		intensity = 0
	}
	return min(base+int(heartRateRise*intensity), heartRateCeiling)
}

// Reading is one externally supplied biometric sample.
type Reading struct {
	HeartRate int
	Reps      int
}

// ReadingProvider supplies the most recent external reading. It reports
// false when there is none or the feed is currently failing.
type ReadingProvider interface {
	Latest() (Reading, bool)
}

// FeedSource reports metrics from an external telemetry feed. Nothing is
// sent until the feed has produced a reading.
type FeedSource struct {
	feed ReadingProvider
}

// NewFeedSource wraps a reading provider.
func NewFeedSource(p ReadingProvider) *FeedSource {
	return &FeedSource{feed: p}
}

func (*FeedSource) Name() string { return "feed" }

// Sample copies the feed's heart rate and rep count into the record.
func (f *FeedSource) Sample(s *Session, now time.Time) (protocol.Metrics, bool) {
	r, ok := f.feed.Latest()
	if !ok {
		return protocol.Metrics{}, false
	}
	s.Reps = r.Reps
	duration := s.Duration(now)
	return protocol.Metrics{
		HeartRate:       r.HeartRate,
		Pulse:           r.HeartRate,
		RepCount:        r.Reps,
		WorkoutDuration: duration,
		CaloriesBurned:  Calories(duration, r.Reps),
		Timestamp:       now.UnixMilli(),
	}, true
}
