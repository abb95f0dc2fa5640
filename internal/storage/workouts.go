package storage

import (
	"context"
	"fmt"

	"github.com/seandooa/cg4002-capstone-code/internal/models"
)

// InsertWorkout inserts a workout row. Duplicate ids are ignored.
func (db *DB) InsertWorkout(ctx context.Context, row models.WorkoutRow) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workouts (id, device_id, exercise_type, start_time, end_time,
		 duration_sec, reps, calories, source)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT DO NOTHING`,
		row.ID, row.DeviceID, row.ExerciseType, row.StartTime, row.EndTime,
		row.DurationSec, row.Reps, row.Calories, row.Source)
	if err != nil {
		return fmt.Errorf("inserting workout: %w", err)
	}
	return nil
}

// RecentWorkouts retrieves the newest workouts, optionally for one device.
func (db *DB) RecentWorkouts(ctx context.Context, deviceID string, limit int) ([]models.WorkoutRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, device_id, exercise_type, start_time, end_time,
		 duration_sec, reps, calories, source
		 FROM workouts
		 WHERE $1 = '' OR device_id = $1
		 ORDER BY end_time DESC
		 LIMIT $2`,
		deviceID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	return scanWorkoutRows(rows)
}

func scanWorkoutRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.WorkoutRow, error) {
	var result []models.WorkoutRow
	for rows.Next() {
		var w models.WorkoutRow
		if err := rows.Scan(&w.ID, &w.DeviceID, &w.ExerciseType, &w.StartTime, &w.EndTime,
			&w.DurationSec, &w.Reps, &w.Calories, &w.Source); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
