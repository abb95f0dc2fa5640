package feedback

import "github.com/seandooa/cg4002-capstone-code/internal/protocol"

// Source produces the periodic feedback record for a device. It reports
// false when nothing should be sent this cycle.
type Source interface {
	Name() string
	Next(exercise string) (protocol.Feedback, bool)
}

// Synthetic picks random template feedback. Devices that have not chosen an
// exercise get feedback from a random pool.
type Synthetic struct {
	gen *Generator
}

// NewSynthetic wraps a generator.
func NewSynthetic(gen *Generator) *Synthetic {
	return &Synthetic{gen: gen}
}

func (*Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Next(exercise string) (protocol.Feedback, bool) {
	if _, ok := templates[exercise]; !ok {
		exercise = s.gen.AnyExercise()
	}
	return s.gen.Random(exercise), true
}

// Labeler supplies the current form label from an external classifier feed.
type Labeler interface {
	Current() (label string, status string)
}

// FeedLabels relays the external feed's label verbatim.
type FeedLabels struct {
	labels Labeler
}

// NewFeedLabels wraps a label tracker.
func NewFeedLabels(l Labeler) *FeedLabels {
	return &FeedLabels{labels: l}
}

func (*FeedLabels) Name() string { return "feed" }

func (f *FeedLabels) Next(exercise string) (protocol.Feedback, bool) {
	label, status := f.labels.Current()
	if label == "" {
		return protocol.Feedback{}, false
	}
	return protocol.Feedback{
		Status:       status,
		Confidence:   defaultConfidence,
		ExerciseType: exercise,
		Feedback:     []string{label},
	}, true
}
