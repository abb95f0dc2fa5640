// Package command executes operator and feed commands against the device
// registry. All commands pass through one channel and are executed by a
// single goroutine, so they are applied in submission order.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seandooa/cg4002-capstone-code/internal/metrics"
	"github.com/seandooa/cg4002-capstone-code/internal/models"
	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
)

// Action names a command.
type Action string

const (
	ActionSelect Action = "select"
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrMissingExercise = errors.New("missing exercise type")
	ErrMissingTarget   = errors.New("missing device identifier")
)

// Command is a request to act on one device or on all of them.
type Command struct {
	Action   Action
	Target   string // device id, index or "all"
	Exercise string // select only
}

// Select returns a select_exercise command.
func Select(target, exercise string) Command {
	return Command{Action: ActionSelect, Target: target, Exercise: exercise}
}

// Start returns a start_workout command.
func Start(target string) Command { return Command{Action: ActionStart, Target: target} }

// Stop returns a stop_workout command.
func Stop(target string) Command { return Command{Action: ActionStop, Target: target} }

func (c Command) validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return ErrMissingTarget
	}
	switch c.Action {
	case ActionSelect:
		if strings.TrimSpace(c.Exercise) == "" {
			return ErrMissingExercise
		}
	case ActionStart, ActionStop:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
	return nil
}

// Outcome is the effect of a command on one device.
type Outcome struct {
	DeviceID string `json:"device_id"`
	Index    int    `json:"index"`
	Sent     bool   `json:"sent"`
	Error    string `json:"error,omitempty"`
	Reps     int    `json:"reps"`
	Duration int    `json:"duration_sec"`
}

// Result reports what a command did. NotFound and NoDevices are normal
// outcomes, not errors.
type Result struct {
	Command   Command   `json:"-"`
	All       bool      `json:"all"`
	NotFound  bool      `json:"not_found"`
	NoDevices bool      `json:"no_devices"`
	Devices   []Outcome `json:"devices"`
}

func (r Result) outcome() string {
	switch {
	case r.NotFound:
		return "not_found"
	case r.NoDevices:
		return "no_devices"
	default:
		return "ok"
	}
}

// Archiver stores finished workouts.
type Archiver interface {
	InsertWorkout(ctx context.Context, row models.WorkoutRow) error
}

type request struct {
	cmd   Command
	reply chan Result
}

// Router is the single executor of commands.
type Router struct {
	reg    *registry.Registry
	store  Archiver
	log    *slog.Logger
	source string
	queue  chan request
	now    func() time.Time
}

// New returns a router. store may be nil. source names the metrics source
// recorded with archived workouts.
func New(reg *registry.Registry, store Archiver, source string, log *slog.Logger) *Router {
	return &Router{
		reg:    reg,
		store:  store,
		log:    log,
		source: source,
		queue:  make(chan request, 64),
		now:    time.Now,
	}
}

// Run executes commands until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-r.queue:
			res := r.execute(ctx, req.cmd)
			metrics.Commands.WithLabelValues(string(req.cmd.Action), res.outcome()).Inc()
			if req.reply != nil {
				req.reply <- res
			}
		}
	}
}

// Submit enqueues cmd and waits for its result.
func (r *Router) Submit(ctx context.Context, cmd Command) (Result, error) {
	if err := cmd.validate(); err != nil {
		return Result{Command: cmd}, err
	}
	req := request{cmd: cmd, reply: make(chan Result, 1)}
	select {
	case r.queue <- req:
	case <-ctx.Done():
		return Result{Command: cmd}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return Result{Command: cmd}, ctx.Err()
	}
}

// Enqueue queues cmd without waiting for it to run. It reports false if the
// command is invalid or the queue is full.
func (r *Router) Enqueue(cmd Command) bool {
	if err := cmd.validate(); err != nil {
		return false
	}
	select {
	case r.queue <- request{cmd: cmd}:
		return true
	default:
		return false
	}
}

// List returns the registered devices.
func (r *Router) List() []registry.Entry {
	return r.reg.List()
}

func (r *Router) execute(ctx context.Context, cmd Command) Result {
	res := Result{Command: cmd}
	target := strings.TrimSpace(cmd.Target)

	resolved, err := r.reg.Resolve(target)
	if err != nil {
		res.NotFound = true
		r.log.Warn("command target not found", "action", cmd.Action, "target", target)
		return res
	}
	res.All = resolved.All
	if len(resolved.DeviceIDs) == 0 {
		res.NoDevices = true
		r.log.Info("no connected devices", "action", cmd.Action)
		return res
	}

	for _, id := range resolved.DeviceIDs {
		out, ok := r.apply(ctx, cmd, id)
		if !ok {
			// Closed or gone since resolution.
			continue
		}
		res.Devices = append(res.Devices, out)
	}
	if len(res.Devices) == 0 {
		if res.All {
			res.NoDevices = true
		} else {
			res.NotFound = true
		}
	}
	return res
}

func (r *Router) apply(ctx context.Context, cmd Command, deviceID string) (Outcome, bool) {
	now := r.now()

	var (
		tgt registry.Target
		ok  bool
		msg protocol.Outbound
	)
	switch cmd.Action {
	case ActionSelect:
		exercise := strings.TrimSpace(cmd.Exercise)
		tgt, ok = r.reg.SetExercise(deviceID, exercise, now)
		msg = protocol.NewSystemCommand(protocol.ActionSelectExercise, exercise)
	case ActionStart:
		tgt, ok = r.reg.StartWorkout(deviceID, now)
		msg = protocol.NewSystemCommand(protocol.ActionStartWorkout, "")
	case ActionStop:
		tgt, ok = r.reg.StopWorkout(deviceID, now)
		msg = protocol.NewSystemCommand(protocol.ActionStopWorkout, "")
	}
	if !ok {
		return Outcome{}, false
	}

	out := Outcome{
		DeviceID: tgt.DeviceID,
		Index:    tgt.Index,
		Reps:     tgt.Session.Reps,
		Duration: tgt.Session.Duration,
	}
	err := tgt.Conn.Send(msg)
	metrics.Sent(msg.Type, err)
	if err != nil {
		out.Error = err.Error()
		r.log.Warn("sending command", "action", cmd.Action, "device_id", deviceID, "error", err)
	} else {
		out.Sent = true
		r.log.Info("command sent", "action", cmd.Action, "device_id", deviceID, "index", tgt.Index)
	}

	if cmd.Action == ActionStop && tgt.WasActive {
		r.archive(ctx, tgt)
	}
	return out, true
}

func (r *Router) archive(ctx context.Context, tgt registry.Target) {
	if r.store == nil {
		return
	}
	row := models.WorkoutRow{
		ID:           uuid.New(),
		DeviceID:     tgt.DeviceID,
		ExerciseType: tgt.ExerciseType,
		StartTime:    tgt.Session.StartTime,
		EndTime:      tgt.Session.EndTime,
		DurationSec:  tgt.Session.Duration,
		Reps:         tgt.Session.Reps,
		Calories:     tgt.Session.Calories,
		Source:       r.source,
	}
	if err := r.store.InsertWorkout(ctx, row); err != nil {
		r.log.Error("archiving workout", "device_id", tgt.DeviceID, "error", err)
	}
}
