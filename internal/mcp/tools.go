package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
)

const deviceHelp = "Device id, index from list_devices, or \"all\""

// --- Tool definitions ---

var toolListDevices = mcp.NewTool("list_devices",
	mcp.WithDescription("List devices registered with the relay, ordered by index. Each entry has the index, device id, selected exercise, whether the connection is open, and the workout state (uninitialized, idle, active)."),
)

var toolSelectExercise = mcp.NewTool("select_exercise",
	mcp.WithDescription("Tell one device, or all devices, which exercise to track. Sends a select_exercise command to each device."),
	mcp.WithString("device", mcp.Required(), mcp.Description(deviceHelp)),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise type (e.g. squats, bicep-curls, lateral-raises, push-ups, Hr Only)")),
)

var toolStartWorkout = mcp.NewTool("start_workout",
	mcp.WithDescription("Start a workout. Resets the device's rep count and duration and switches metrics to active mode."),
	mcp.WithString("device", mcp.Required(), mcp.Description(deviceHelp)),
)

var toolStopWorkout = mcp.NewTool("stop_workout",
	mcp.WithDescription("Stop a workout. Returns final reps and duration per device; active workouts are archived to history."),
	mcp.WithString("device", mcp.Required(), mcp.Description(deviceHelp)),
)

var toolGetRecentWorkouts = mcp.NewTool("get_recent_workouts",
	mcp.WithDescription("Finished workouts from history, newest first."),
	mcp.WithString("device", mcp.Description("Only workouts of this device id. Defaults to all devices.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of workouts. Defaults to 10.")),
)

// --- Tool handlers ---

func (h *handlers) listDevices(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := h.backend.ListDevices(ctx)
	if err != nil {
		h.log.Error("mcp list_devices", "error", err)
		return mcp.NewToolResultError("listing devices failed: " + err.Error()), nil
	}
	return jsonResult(devices)
}

func (h *handlers) selectExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := req.RequireString("device")
	if err != nil {
		return mcp.NewToolResultError("device parameter is required"), nil
	}
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	return h.execute(ctx, command.Select(device, exercise))
}

func (h *handlers) startWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := req.RequireString("device")
	if err != nil {
		return mcp.NewToolResultError("device parameter is required"), nil
	}
	return h.execute(ctx, command.Start(device))
}

func (h *handlers) stopWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := req.RequireString("device")
	if err != nil {
		return mcp.NewToolResultError("device parameter is required"), nil
	}
	return h.execute(ctx, command.Stop(device))
}

func (h *handlers) getRecentWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device := req.GetString("device", "")
	limit := req.GetInt("limit", 10)

	workouts, err := h.backend.RecentWorkouts(ctx, device, limit)
	if err != nil {
		h.log.Error("mcp get_recent_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(workouts)
}

func (h *handlers) execute(ctx context.Context, cmd command.Command) (*mcp.CallToolResult, error) {
	res, err := h.backend.Execute(ctx, cmd)
	if err != nil {
		h.log.Error("mcp command", "action", cmd.Action, "target", cmd.Target, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", cmd.Action, err)), nil
	}
	switch {
	case res.NotFound:
		return mcp.NewToolResultError(fmt.Sprintf("device %q not found; call list_devices for valid ids and indices", cmd.Target)), nil
	case res.NoDevices:
		return mcp.NewToolResultText("No devices connected; nothing was sent."), nil
	}
	return jsonResult(res)
}

func (h *handlers) devicesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	devices, err := h.backend.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(devices)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
