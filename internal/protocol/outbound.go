package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outbound message kinds.
const (
	KindFeedback      = "ai_feedback"
	KindSystemCommand = "system_command"
	KindMetrics       = "performance_metrics"
)

// Feedback statuses.
const (
	StatusGood    = "good"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Command actions.
const (
	ActionSelectExercise = "select_exercise"
	ActionStartWorkout   = "start_workout"
	ActionStopWorkout    = "stop_workout"
)

// Outbound is the frame sent to a device: a kind plus its payload.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Feedback is the ai_feedback payload.
type Feedback struct {
	Status       string   `json:"status"`
	Confidence   float64  `json:"confidence"`
	ExerciseType string   `json:"exerciseType"`
	Timestamp    int64    `json:"timestamp"`
	Feedback     []string `json:"feedback"`
}

// SystemCommand is the system_command payload.
type SystemCommand struct {
	Action       string `json:"action"`
	ExerciseType string `json:"exerciseType,omitempty"`
}

// Metrics is the performance_metrics payload.
type Metrics struct {
	HeartRate       int   `json:"heartRate"`
	Pulse           int   `json:"pulse"`
	RepCount        int   `json:"repCount"`
	WorkoutDuration int   `json:"workoutDuration"`
	CaloriesBurned  int   `json:"caloriesBurned"`
	Timestamp       int64 `json:"timestamp"`
}

// NewFeedback wraps a feedback payload, stamping it if no timestamp is set.
func NewFeedback(f Feedback) Outbound {
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().UnixMilli()
	}
	if f.Feedback == nil {
		f.Feedback = []string{}
	}
	return Outbound{Type: KindFeedback, Payload: f}
}

// NewSystemCommand wraps a command for a device.
func NewSystemCommand(action, exerciseType string) Outbound {
	return Outbound{Type: KindSystemCommand, Payload: SystemCommand{Action: action, ExerciseType: exerciseType}}
}

// NewMetrics wraps a metrics payload.
func NewMetrics(m Metrics) Outbound {
	return Outbound{Type: KindMetrics, Payload: m}
}

// Encode serializes an outbound frame.
func Encode(msg Outbound) ([]byte, error) {
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Type, err)
	}
	return b, nil
}
