package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seandooa/cg4002-capstone-code/internal/models"
	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
)

type fakeConn struct {
	id     string
	closed atomic.Bool
	fail   bool
	mu     sync.Mutex
	sent   []protocol.Outbound
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) Open() bool { return !c.closed.Load() }
func (c *fakeConn) Send(m protocol.Outbound) error {
	if c.fail {
		return errors.New("queue full")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}

func (c *fakeConn) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.sent {
		out = append(out, m.Payload.(protocol.SystemCommand).Action)
	}
	return out
}

type memStore struct {
	mu   sync.Mutex
	rows []models.WorkoutRow
}

func (s *memStore) InsertWorkout(_ context.Context, row models.WorkoutRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startRouter(t *testing.T, reg *registry.Registry, store Archiver) *Router {
	t.Helper()
	r := New(reg, store, "synthetic", discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

func register(t *testing.T, reg *registry.Registry, id string) *fakeConn {
	t.Helper()
	c := &fakeConn{id: "conn-" + id}
	reg.Attach(c)
	if _, err := reg.Register(c, id, "squats"); err != nil {
		t.Fatal(err)
	}
	return c
}

func submit(t *testing.T, r *Router, cmd Command) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := r.Submit(ctx, cmd)
	if err != nil {
		t.Fatalf("Submit(%+v): %v", cmd, err)
	}
	return res
}

// TestStartAllWithNoDevices verifies "all" with an empty registry reports no devices and sends nothing.
func TestStartAllWithNoDevices(t *testing.T) {
	r := startRouter(t, registry.New(), nil)
	res := submit(t, r, Start("all"))
	if !res.NoDevices || res.NotFound || len(res.Devices) != 0 {
		t.Errorf("result = %+v, want NoDevices", res)
	}
}

// TestUnknownTargetNotFound verifies an unresolvable identifier yields NotFound.
func TestUnknownTargetNotFound(t *testing.T) {
	reg := registry.New()
	c := register(t, reg, "watch-1")
	r := startRouter(t, reg, nil)

	for _, target := range []string{"ghost", "7"} {
		res := submit(t, r, Start(target))
		if !res.NotFound {
			t.Errorf("Start(%q) = %+v, want NotFound", target, res)
		}
	}
	if got := c.actions(); len(got) != 0 {
		t.Errorf("sent %v to an unaddressed device", got)
	}
}

// TestSelectSendsSystemCommand verifies select updates the exercise and notifies the device.
func TestSelectSendsSystemCommand(t *testing.T) {
	reg := registry.New()
	c := register(t, reg, "watch-1")
	r := startRouter(t, reg, nil)

	res := submit(t, r, Select("1", "bicep-curls"))
	if len(res.Devices) != 1 || !res.Devices[0].Sent {
		t.Fatalf("result = %+v", res)
	}
	c.mu.Lock()
	msg := c.sent[0]
	c.mu.Unlock()
	if msg.Type != protocol.KindSystemCommand {
		t.Errorf("type = %q", msg.Type)
	}
	cmd := msg.Payload.(protocol.SystemCommand)
	if cmd.Action != protocol.ActionSelectExercise || cmd.ExerciseType != "bicep-curls" {
		t.Errorf("payload = %+v", cmd)
	}
	if got := reg.List()[0].ExerciseType; got != "bicep-curls" {
		t.Errorf("exercise = %q", got)
	}
}

// TestStartResetsSession verifies start clears reps accumulated by an earlier workout.
func TestStartResetsSession(t *testing.T) {
	reg := registry.New()
	register(t, reg, "watch-1")
	r := startRouter(t, reg, nil)

	submit(t, r, Start("watch-1"))
	reg.RecordReps("watch-1", 12, time.Now())
	submit(t, r, Start("watch-1"))

	sum, ok := reg.Session("watch-1", time.Now())
	if !ok || sum.Reps != 0 {
		t.Errorf("session = %+v, want reps reset", sum)
	}
}

// TestStopArchivesWorkout verifies stopping an active workout stores one summary row.
func TestStopArchivesWorkout(t *testing.T) {
	reg := registry.New()
	register(t, reg, "watch-1")
	store := &memStore{}
	r := startRouter(t, reg, store)

	submit(t, r, Start("watch-1"))
	reg.RecordReps("watch-1", 8, time.Now())
	res := submit(t, r, Stop("watch-1"))
	if len(res.Devices) != 1 || res.Devices[0].Reps != 8 {
		t.Fatalf("result = %+v", res)
	}
	submit(t, r, Stop("watch-1"))

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.rows) != 1 {
		t.Fatalf("archived %d rows, want 1", len(store.rows))
	}
	row := store.rows[0]
	if row.DeviceID != "watch-1" || row.Reps != 8 || row.ExerciseType != "squats" || row.Source != "synthetic" {
		t.Errorf("row = %+v", row)
	}
}

// TestAllSkipsClosedAndSurvivesSendErrors verifies fan-out continues past a failing device.
func TestAllSkipsClosedAndSurvivesSendErrors(t *testing.T) {
	reg := registry.New()
	a := register(t, reg, "a")
	b := register(t, reg, "b")
	c := register(t, reg, "c")
	b.fail = true
	c.closed.Store(true)
	r := startRouter(t, reg, nil)

	res := submit(t, r, Start("all"))
	if !res.All || len(res.Devices) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if !res.Devices[0].Sent || res.Devices[1].Sent || res.Devices[1].Error == "" {
		t.Errorf("outcomes = %+v", res.Devices)
	}
	if got := a.actions(); len(got) != 1 || got[0] != protocol.ActionStartWorkout {
		t.Errorf("a received %v", got)
	}
	if got := c.actions(); len(got) != 0 {
		t.Errorf("closed device received %v", got)
	}
}

// TestCommandsRunInOrder verifies enqueued commands apply in submission order.
func TestCommandsRunInOrder(t *testing.T) {
	reg := registry.New()
	c := register(t, reg, "watch-1")
	r := startRouter(t, reg, nil)

	if !r.Enqueue(Start("watch-1")) || !r.Enqueue(Stop("watch-1")) {
		t.Fatal("Enqueue rejected a command")
	}
	submit(t, r, Start("watch-1"))

	got := c.actions()
	want := []string{protocol.ActionStartWorkout, protocol.ActionStopWorkout, protocol.ActionStartWorkout}
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestInvalidCommands verifies malformed commands are rejected before queueing.
func TestInvalidCommands(t *testing.T) {
	r := New(registry.New(), nil, "synthetic", discardLogger())
	ctx := context.Background()
	if _, err := r.Submit(ctx, Select("1", "")); !errors.Is(err, ErrMissingExercise) {
		t.Errorf("select without exercise: %v", err)
	}
	if _, err := r.Submit(ctx, Start(" ")); !errors.Is(err, ErrMissingTarget) {
		t.Errorf("start without target: %v", err)
	}
	if _, err := r.Submit(ctx, Command{Action: "dance", Target: "1"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action: %v", err)
	}
}
