package mcp

import (
	"context"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/models"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
	"github.com/seandooa/cg4002-capstone-code/internal/storage"
)

// Backend is what the MCP tools operate on. Local (in-process) and
// HTTPClient (the relay's REST API) satisfy it.
type Backend interface {
	ListDevices(ctx context.Context) ([]registry.Entry, error)
	Execute(ctx context.Context, cmd command.Command) (command.Result, error)
	RecentWorkouts(ctx context.Context, deviceID string, limit int) ([]models.WorkoutRow, error)
}

// Commander submits commands to the relay's router.
type Commander interface {
	Submit(ctx context.Context, cmd command.Command) (command.Result, error)
	List() []registry.Entry
}

// Local serves the tools from the running relay.
type Local struct {
	Commands Commander
	History  storage.Store
}

// Compile-time checks: both backends satisfy Backend.
var (
	_ Backend = (*Local)(nil)
	_ Backend = (*HTTPClient)(nil)
)

func (l *Local) ListDevices(context.Context) ([]registry.Entry, error) {
	return l.Commands.List(), nil
}

func (l *Local) Execute(ctx context.Context, cmd command.Command) (command.Result, error) {
	return l.Commands.Submit(ctx, cmd)
}

func (l *Local) RecentWorkouts(ctx context.Context, deviceID string, limit int) ([]models.WorkoutRow, error) {
	if l.History == nil {
		return nil, nil
	}
	return l.History.RecentWorkouts(ctx, deviceID, limit)
}
