package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/seandooa/cg4002-capstone-code/internal/models"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "sub", "fitrelay.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func workoutAt(device string, end time.Time, reps int) models.WorkoutRow {
	return models.WorkoutRow{
		ID:           uuid.New(),
		DeviceID:     device,
		ExerciseType: "squats",
		StartTime:    end.Add(-2 * time.Minute),
		EndTime:      end,
		DurationSec:  120,
		Reps:         reps,
		Calories:     int(0.15*120 + 1.2*float64(reps)),
		Source:       "synthetic",
	}
}

// TestSQLiteRoundTrip verifies an archived workout reads back with its fields intact.
func TestSQLiteRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	end := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	row := workoutAt("watch-1", end, 15)

	if err := s.InsertWorkout(ctx, row); err != nil {
		t.Fatal(err)
	}
	// Same id again is ignored.
	if err := s.InsertWorkout(ctx, row); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentWorkouts(ctx, "watch-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	w := got[0]
	if w.ID != row.ID || w.DeviceID != row.DeviceID || w.Reps != 15 || w.Calories != row.Calories || w.Source != "synthetic" {
		t.Errorf("row = %+v, want %+v", w, row)
	}
	if !w.StartTime.Equal(row.StartTime) || !w.EndTime.Equal(row.EndTime) {
		t.Errorf("times = %v..%v, want %v..%v", w.StartTime, w.EndTime, row.StartTime, row.EndTime)
	}
}

// TestSQLiteRecentOrderingAndFilter verifies newest-first ordering, device filter and limit.
func TestSQLiteRecentOrderingAndFilter(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, dev := range []string{"a", "b", "a", "a"} {
		if err := s.InsertWorkout(ctx, workoutAt(dev, base.Add(time.Duration(i)*time.Hour), i)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.RecentWorkouts(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Reps != 3 || all[3].Reps != 0 {
		t.Errorf("all = %+v", all)
	}

	onlyA, err := s.RecentWorkouts(ctx, "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyA) != 2 || onlyA[0].Reps != 3 || onlyA[1].Reps != 2 {
		t.Errorf("device a = %+v", onlyA)
	}
}

// TestNopStore verifies the no-op store accepts writes and returns nothing.
func TestNopStore(t *testing.T) {
	var s Store = Nop{}
	if err := s.InsertWorkout(context.Background(), models.WorkoutRow{}); err != nil {
		t.Fatal(err)
	}
	rows, err := s.RecentWorkouts(context.Background(), "", 5)
	if err != nil || len(rows) != 0 {
		t.Errorf("RecentWorkouts = %v, %v", rows, err)
	}
}
