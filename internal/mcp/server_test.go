package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/models"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
)

type stubBackend struct {
	devices  []registry.Entry
	result   command.Result
	err      error
	cmds     []command.Command
	device   string
	limit    int
	workouts []models.WorkoutRow
}

func (s *stubBackend) ListDevices(context.Context) ([]registry.Entry, error) {
	return s.devices, s.err
}

func (s *stubBackend) Execute(_ context.Context, cmd command.Command) (command.Result, error) {
	s.cmds = append(s.cmds, cmd)
	return s.result, s.err
}

func (s *stubBackend) RecentWorkouts(_ context.Context, deviceID string, limit int) ([]models.WorkoutRow, error) {
	s.device, s.limit = deviceID, limit
	return s.workouts, s.err
}

func newHandlers(b Backend) *handlers {
	return &handlers{backend: b, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// TestListDevicesTool verifies the device table is returned as JSON.
func TestListDevicesTool(t *testing.T) {
	h := newHandlers(&stubBackend{devices: []registry.Entry{{Index: 1, DeviceID: "watch-1", Online: true, StateName: "idle"}}})
	res, err := h.listDevices(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if text := resultText(t, res); !strings.Contains(text, `"device_id":"watch-1"`) {
		t.Errorf("text = %s", text)
	}
}

// TestSelectExerciseTool verifies arguments are mapped onto a select command.
func TestSelectExerciseTool(t *testing.T) {
	b := &stubBackend{result: command.Result{Devices: []command.Outcome{{DeviceID: "watch-1", Index: 1, Sent: true}}}}
	h := newHandlers(b)
	res, err := h.selectExercise(context.Background(), call(map[string]any{"device": "1", "exercise": "squats"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if len(b.cmds) != 1 || b.cmds[0] != command.Select("1", "squats") {
		t.Errorf("cmds = %+v", b.cmds)
	}
}

// TestRequiredArguments verifies missing arguments produce tool errors, not Go errors.
func TestRequiredArguments(t *testing.T) {
	b := &stubBackend{}
	h := newHandlers(b)
	ctx := context.Background()

	res, err := h.selectExercise(ctx, call(map[string]any{"device": "1"}))
	if err != nil || !res.IsError {
		t.Errorf("select without exercise: res=%+v err=%v", res, err)
	}
	res, err = h.startWorkout(ctx, call(map[string]any{}))
	if err != nil || !res.IsError {
		t.Errorf("start without device: res=%+v err=%v", res, err)
	}
	if len(b.cmds) != 0 {
		t.Errorf("commands executed: %+v", b.cmds)
	}
}

// TestCommandOutcomes verifies not-found is an error result and no-devices a plain message.
func TestCommandOutcomes(t *testing.T) {
	ctx := context.Background()

	h := newHandlers(&stubBackend{result: command.Result{NotFound: true}})
	res, _ := h.startWorkout(ctx, call(map[string]any{"device": "9"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Errorf("not found result = %s", resultText(t, res))
	}

	h = newHandlers(&stubBackend{result: command.Result{All: true, NoDevices: true}})
	res, _ = h.stopWorkout(ctx, call(map[string]any{"device": "all"}))
	if res.IsError || !strings.Contains(resultText(t, res), "No devices connected") {
		t.Errorf("no devices result = %s", resultText(t, res))
	}

	h = newHandlers(&stubBackend{err: errors.New("router stopped")})
	res, _ = h.startWorkout(ctx, call(map[string]any{"device": "1"}))
	if !res.IsError {
		t.Error("backend error not reported")
	}
}

// TestGetRecentWorkoutsTool verifies the device filter and limit are passed through.
func TestGetRecentWorkoutsTool(t *testing.T) {
	b := &stubBackend{workouts: []models.WorkoutRow{{DeviceID: "watch-1", Reps: 12}}}
	h := newHandlers(b)
	res, err := h.getRecentWorkouts(context.Background(), call(map[string]any{"device": "watch-1", "limit": 3}))
	if err != nil || res.IsError {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if b.device != "watch-1" || b.limit != 3 {
		t.Errorf("backend got device=%q limit=%d", b.device, b.limit)
	}

	if _, err := h.getRecentWorkouts(context.Background(), call(nil)); err != nil {
		t.Fatal(err)
	}
	if b.device != "" || b.limit != 10 {
		t.Errorf("defaults: device=%q limit=%d", b.device, b.limit)
	}
}

// TestLocalBackendWithoutHistory verifies a relay without a store returns no workouts.
func TestLocalBackendWithoutHistory(t *testing.T) {
	l := &Local{}
	rows, err := l.RecentWorkouts(context.Background(), "", 5)
	if err != nil || rows != nil {
		t.Errorf("rows=%v err=%v", rows, err)
	}
}

// TestNewRegistersTools verifies the server builds with the stub backend.
func TestNewRegistersTools(t *testing.T) {
	s := New(&stubBackend{}, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s == nil {
		t.Fatal("New returned nil")
	}
}
