// Package feedback builds the coaching messages pushed to devices.
package feedback

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
)

// HighHeartRate is the bpm above which a device is told to slow down.
const HighHeartRate = 150

const defaultConfidence = 0.85

var fallbackPool = []string{"Keep up the good work!"}

// templates are ordered from best to worst form; the pick index decides
// the severity tier.
var templates = map[string][]string{
	"push-ups": {
		"Excellent push-up form!",
		"Keep your body straight",
		"Lower your body more",
		"Keep elbows close to body",
		"Maintain shoulder alignment",
		"Control the movement",
		"Poor form detected - reset position",
	},
	"bicep-curls": {
		"Perfect curl form!",
		"Keep shoulders stable",
		"Curl the weights up more",
		"Keep elbows at sides",
		"Control the movement",
		"Don't swing the weights",
		"Poor form detected - reset position",
	},
	"lateral-raises": {
		"Perfect shoulder height!",
		"Keep slight elbow bend",
		"Raise arms to shoulder level",
		"Keep shoulders level",
		"Control the movement",
		"Don't raise too high",
		"Poor form detected - reset position",
	},
	"squats": {
		"Perfect squat form!",
		"Keep chest up",
		"Lower your body more",
		"Keep knees behind toes",
		"Keep your back straight",
		"Control the movement",
		"Poor form detected - reset position",
	},
}

// Exercises lists the exercises that have template pools, in a stable order.
var Exercises = []string{"push-ups", "bicep-curls", "lateral-raises", "squats"}

const (
	warningFrom = 4
	errorFrom   = 6
	pickRange   = 7
)

// Tier maps a template index to its severity.
func Tier(index int) string {
	switch {
	case index >= errorFrom:
		return protocol.StatusError
	case index >= warningFrom:
		return protocol.StatusWarning
	default:
		return protocol.StatusGood
	}
}

// Generator picks random feedback. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator. A nil rng uses a random seed.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// Random picks a template for the exercise uniformly and tags it with the
// matching severity and a confidence in [0.7, 1.0).
func (g *Generator) Random(exercise string) protocol.Feedback {
	g.mu.Lock()
	index := g.rng.IntN(pickRange)
	confidence := 0.7 + 0.3*g.rng.Float64()
	g.mu.Unlock()

	pool, ok := templates[exercise]
	if !ok || len(pool) == 0 {
		pool = fallbackPool
	}
	return protocol.Feedback{
		Status:       Tier(index),
		Confidence:   confidence,
		ExerciseType: exercise,
		Feedback:     []string{pool[index%len(pool)]},
	}
}

// AnyExercise picks one of the known exercises.
func (g *Generator) AnyExercise() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Exercises[g.rng.IntN(len(Exercises))]
}

// Welcome greets a freshly registered device.
func Welcome(exercise string) protocol.Feedback {
	return fixed(exercise, protocol.StatusGood, "Welcome! Ready to start your workout.")
}

// HeartRateWarning asks the user to take a break.
func HeartRateWarning(exercise string) protocol.Feedback {
	return fixed(exercise, protocol.StatusWarning, "Heart rate is high - consider taking a break")
}

// Progress encourages the user on biometric rep milestones.
func Progress(exercise string, reps int) protocol.Feedback {
	return fixed(exercise, protocol.StatusGood, fmt.Sprintf("Great progress! %d reps completed!", reps))
}

// RepMilestone encourages the user on detected rep milestones.
func RepMilestone(exercise string, reps int) protocol.Feedback {
	return fixed(exercise, protocol.StatusGood,
		fmt.Sprintf("Excellent! %d reps completed!", reps),
		"Keep up the great work!")
}

// ForBiometrics returns the immediate reply to a biometric sample, if any.
// A high heart rate takes precedence over rep progress.
func ForBiometrics(exercise string, heartRate, reps int) (protocol.Feedback, bool) {
	switch {
	case heartRate > HighHeartRate:
		return HeartRateWarning(exercise), true
	case reps > 0 && reps%10 == 0:
		return Progress(exercise, reps), true
	}
	return protocol.Feedback{}, false
}

// ForRepDetection returns the immediate reply to a detected rep count, if any.
func ForRepDetection(exercise string, reps int) (protocol.Feedback, bool) {
	if reps > 0 && reps%5 == 0 {
		return RepMilestone(exercise, reps), true
	}
	return protocol.Feedback{}, false
}

func fixed(exercise, status string, messages ...string) protocol.Feedback {
	return protocol.Feedback{
		Status:       status,
		Confidence:   defaultConfidence,
		ExerciseType: exercise,
		Feedback:     messages,
	}
}
