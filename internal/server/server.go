// Package server exposes the relay over HTTP: the device websocket, the
// REST command API, feed push, Prometheus metrics and the MCP endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/feed"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
	"github.com/seandooa/cg4002-capstone-code/internal/storage"
)

// Commander submits commands to the relay's router.
type Commander interface {
	Submit(ctx context.Context, cmd command.Command) (command.Result, error)
	List() []registry.Entry
}

// FeedIngester accepts feed records pushed over HTTP.
type FeedIngester interface {
	Ingest(rec feed.Record)
}

// Deps are the handlers' collaborators. History, Feed and MCP may be nil;
// their routes are then not mounted (History falls back to no rows).
type Deps struct {
	Commands Commander
	History  storage.Store
	Relay    http.Handler
	Feed     FeedIngester
	MCP      http.Handler
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	deps   Deps
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured. An empty apiKey
// leaves the command routes open.
func New(deps Deps, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	if s.deps.Relay != nil {
		s.router.Handle("/ws", s.deps.Relay)
	}

	// Read-only API (no auth; tsnet handles access)
	s.router.Get("/api/v1/devices", s.handleListDevices)
	s.router.Get("/api/v1/workouts", s.handleRecentWorkouts)

	// Anything that changes device state
	s.router.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}
		r.Post("/api/v1/devices/{id}/{action}", s.handleCommand)
		if s.deps.Feed != nil {
			r.Post("/api/v1/feed", s.handleFeedPush)
		}
		if s.deps.MCP != nil {
			r.Handle("/mcp", s.deps.MCP)
		}
	})
}
