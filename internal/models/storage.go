package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutRow is one finished workout ready for insertion into the workouts table.
type WorkoutRow struct {
	ID           uuid.UUID `json:"id"`
	DeviceID     string    `json:"device_id"`
	ExerciseType string    `json:"exercise_type"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	DurationSec  int       `json:"duration_sec"`
	Reps         int       `json:"reps"`
	Calories     int       `json:"calories"`
	Source       string    `json:"source"`
}
