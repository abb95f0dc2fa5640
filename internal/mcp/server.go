// Package mcp exposes the operator commands as MCP tools so an agent can
// drive the relay.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(backend Backend, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("fitrelay", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Fitness device relay. List connected wearables, select exercises, start and stop workouts, and read finished workout history. Devices are addressed by device id, by the index shown in list_devices, or by \"all\"."),
	)

	h := &handlers{backend: backend, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListDevices, Handler: h.listDevices},
		server.ServerTool{Tool: toolSelectExercise, Handler: h.selectExercise},
		server.ServerTool{Tool: toolStartWorkout, Handler: h.startWorkout},
		server.ServerTool{Tool: toolStopWorkout, Handler: h.stopWorkout},
		server.ServerTool{Tool: toolGetRecentWorkouts, Handler: h.getRecentWorkouts},
	)

	s.AddResources(
		server.ServerResource{Resource: resDevices, Handler: h.devicesResource},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	backend Backend
	log     *slog.Logger
}

var resDevices = mcp.NewResource(
	"fitrelay://devices",
	"Connected Devices",
	mcp.WithResourceDescription("Devices currently registered with the relay, with index, exercise and workout state"),
	mcp.WithMIMEType("application/json"),
)
