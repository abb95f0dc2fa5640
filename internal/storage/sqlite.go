package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/seandooa/cg4002-capstone-code/internal/models"
)

// SQLite archives workouts in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time; the archive sees a handful of rows per workout.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS workouts (
		id            TEXT PRIMARY KEY,
		device_id     TEXT NOT NULL,
		exercise_type TEXT NOT NULL DEFAULT '',
		start_ms      INTEGER NOT NULL,
		end_ms        INTEGER NOT NULL,
		duration_sec  INTEGER NOT NULL,
		reps          INTEGER NOT NULL,
		calories      INTEGER NOT NULL,
		source        TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS workouts_device_end_idx ON workouts (device_id, end_ms DESC);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating workouts table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// InsertWorkout records a workout. Duplicate ids are ignored.
func (s *SQLite) InsertWorkout(ctx context.Context, row models.WorkoutRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO workouts (id, device_id, exercise_type, start_ms, end_ms,
		 duration_sec, reps, calories, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID.String(), row.DeviceID, row.ExerciseType, row.StartTime.UnixMilli(), row.EndTime.UnixMilli(),
		row.DurationSec, row.Reps, row.Calories, row.Source,
	)
	if err != nil {
		return fmt.Errorf("inserting workout: %w", err)
	}
	return nil
}

// RecentWorkouts returns the newest workouts, optionally for one device.
func (s *SQLite) RecentWorkouts(ctx context.Context, deviceID string, limit int) ([]models.WorkoutRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, exercise_type, start_ms, end_ms, duration_sec, reps, calories, source
		 FROM workouts
		 WHERE ? = '' OR device_id = ?
		 ORDER BY end_ms DESC
		 LIMIT ?`,
		deviceID, deviceID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutRow
	for rows.Next() {
		var (
			w              models.WorkoutRow
			id             string
			startMs, endMs int64
		)
		if err := rows.Scan(&id, &w.DeviceID, &w.ExerciseType, &startMs, &endMs,
			&w.DurationSec, &w.Reps, &w.Calories, &w.Source); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		if w.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing workout id %q: %w", id, err)
		}
		w.StartTime = time.UnixMilli(startMs).UTC()
		w.EndTime = time.UnixMilli(endMs).UTC()
		result = append(result, w)
	}
	return result, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
