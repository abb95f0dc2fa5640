// Package storage archives finished workouts. The relay never reads
// device or session state back from it.
package storage

import (
	"context"

	"github.com/seandooa/cg4002-capstone-code/internal/models"
)

// Store is the workout history archive.
type Store interface {
	InsertWorkout(ctx context.Context, row models.WorkoutRow) error
	// RecentWorkouts returns up to limit workouts, newest first. An empty
	// deviceID matches every device.
	RecentWorkouts(ctx context.Context, deviceID string, limit int) ([]models.WorkoutRow, error)
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*SQLite)(nil)
	_ Store = Nop{}
)

// Nop discards workouts. It backs the "none" database driver.
type Nop struct{}

func (Nop) InsertWorkout(context.Context, models.WorkoutRow) error { return nil }

func (Nop) RecentWorkouts(context.Context, string, int) ([]models.WorkoutRow, error) {
	return nil, nil
}

func (Nop) Close() error { return nil }

const defaultLimit = 20

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, 500)
}
