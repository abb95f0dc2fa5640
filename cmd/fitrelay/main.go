package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsnet"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/config"
	"github.com/seandooa/cg4002-capstone-code/internal/feed"
	"github.com/seandooa/cg4002-capstone-code/internal/feedback"
	relaymcp "github.com/seandooa/cg4002-capstone-code/internal/mcp"
	"github.com/seandooa/cg4002-capstone-code/internal/operator"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
	"github.com/seandooa/cg4002-capstone-code/internal/relay"
	"github.com/seandooa/cg4002-capstone-code/internal/server"
	"github.com/seandooa/cg4002-capstone-code/internal/storage"
	"github.com/seandooa/cg4002-capstone-code/internal/workout"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and RELAY_* env only when empty)")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpRemote := flag.String("mcp-remote", "", "serve MCP over stdio, proxying to the relay at this URL")
	flag.Parse()

	if *mcpRemote != "" {
		serveRemoteMCP(*mcpRemote)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("fitrelay starting", "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open workout history
	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		log.Error("failed to open workout store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	reg := registry.New()
	router := command.New(reg, store, cfg.Relay.MetricsSource, log)
	gen := feedback.NewGenerator(nil)

	var (
		metricsSource  workout.Source  = workout.NewSynthetic(nil)
		feedbackSource feedback.Source = feedback.NewSynthetic(gen)
		poller         *feed.Poller
	)
	if cfg.Feed.Enabled {
		tracker := feed.NewTracker(cfg.Feed.OutageLimit)
		client := feed.NewClient(cfg.Feed.URL, cfg.Feed.Timeout.Duration)
		devices := func() int {
			_, n := reg.Counts()
			return n
		}
		poller = feed.NewPoller(client, tracker, router, cfg.Feed.Target, cfg.Feed.PollInterval.Duration, devices, log)
		feedbackSource = feedback.NewFeedLabels(tracker)
		if cfg.Relay.MetricsSource == config.SourceFeed {
			metricsSource = workout.NewFeedSource(tracker)
		}
	}

	scheduler := relay.NewScheduler(reg, metricsSource, feedbackSource, relay.SchedulerConfig{
		MetricsInterval:  cfg.Relay.MetricsInterval.Duration,
		FeedbackInterval: cfg.Relay.FeedbackInterval.Duration,
		SessionTTL:       cfg.Relay.SessionTTL.Duration,
	}, log)

	mcpSrv := relaymcp.New(&relaymcp.Local{Commands: router, History: store}, Version, log)
	deps := server.Deps{
		Commands: router,
		History:  store,
		Relay:    relay.NewHandler(reg, gen, cfg.Relay.SendBuffer, log),
		MCP:      mcpserver.NewStreamableHTTPServer(mcpSrv),
	}
	if poller != nil {
		deps.Feed = poller
	}
	srv := server.New(deps, cfg.Server.APIKey, log)

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	g, gctx := errgroup.WithContext(ctx)

	// Websocket connections are hijacked, so Shutdown does not reach them;
	// deriving request contexts from gctx closes them on exit.
	httpSrv := &http.Server{
		Handler:     srv,
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error { return router.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	if poller != nil {
		g.Go(func() error { return poller.Run(gctx) })
	}
	if cfg.Console.Enabled {
		console := operator.NewConsole(router, os.Stdin, os.Stdout, log)
		g.Go(func() error {
			err := console.Run(gctx)
			if errors.Is(err, operator.ErrQuit) {
				log.Info("operator requested shutdown")
				stop()
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("relay stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// openStore opens the configured workout history. Postgres schemas are
// migrated first; SQLite creates its table on open.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := cfg.DSN()
		if err := storage.RunMigrations(dsn); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("database connected", "driver", cfg.Driver)
		return db, nil
	case config.DriverSQLite:
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info("database connected", "driver", cfg.Driver, "path", cfg.Path)
		return db, nil
	default:
		log.Info("workout history disabled")
		return storage.Nop{}, nil
	}
}

// serveRemoteMCP runs the MCP tools over stdio against a relay reached over
// HTTP. Stdout carries the protocol, so logs go to stderr.
func serveRemoteMCP(baseURL string) {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	backend := relaymcp.NewHTTPClient(baseURL, os.Getenv("RELAY_SERVER_API_KEY"))
	log.Info("serving MCP over stdio", "relay", baseURL)
	if err := mcpserver.ServeStdio(relaymcp.New(backend, Version, log)); err != nil {
		log.Error("mcp stdio server failed", "error", err)
		os.Exit(1)
	}
}
