package feed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/metrics"
)

// Fetcher returns the current feed record.
type Fetcher interface {
	Fetch(ctx context.Context) (Record, error)
}

// Enqueuer accepts commands for asynchronous execution.
type Enqueuer interface {
	Enqueue(cmd command.Command) bool
}

// Poller polls the feed and turns exercise and start-flag changes into
// commands for the configured target.
type Poller struct {
	fetch    Fetcher
	tracker  *Tracker
	router   Enqueuer
	target   string
	interval time.Duration
	devices  func() int
	log      *slog.Logger
	warn     rate.Sometimes
}

// NewPoller creates a Poller. devices reports how many devices are bound;
// while it is zero no commands are issued and edges are re-armed.
func NewPoller(fetch Fetcher, tracker *Tracker, router Enqueuer, target string, interval time.Duration, devices func() int, log *slog.Logger) *Poller {
	return &Poller{
		fetch:    fetch,
		tracker:  tracker,
		router:   router,
		target:   target,
		interval: interval,
		devices:  devices,
		log:      log,
		warn:     rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("feed poller started", "target", p.target, "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	rec, err := p.fetch.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n := p.tracker.Fail()
		metrics.FeedPolls.WithLabelValues("error").Inc()
		p.warn.Do(func() {
			p.log.Warn("feed unavailable, will retry", "failures", n, "error", err)
		})
		return
	}
	metrics.FeedPolls.WithLabelValues("ok").Inc()
	p.Ingest(rec)
}

// Ingest applies one record, whether polled or pushed.
func (p *Poller) Ingest(rec Record) {
	edges, recovered := p.tracker.Observe(rec)
	if recovered {
		p.log.Info("feed connection restored")
	}
	p.log.Debug("feed record", "exercise", rec.Exercise, "heart_rate", rec.HeartRate,
		"reps", rec.Reps, "started", rec.Started, "valid", rec.Valid, "label", rec.Label)

	if p.devices != nil && p.devices() == 0 {
		p.tracker.ResetEdges()
		return
	}

	var cmds []command.Command
	if edges.Exercise {
		cmds = append(cmds, command.Select(p.target, rec.Exercise))
	}
	if edges.Started {
		if rec.Started {
			cmds = append(cmds, command.Start(p.target))
		} else {
			cmds = append(cmds, command.Stop(p.target))
		}
	}
	for _, cmd := range cmds {
		if !p.router.Enqueue(cmd) {
			p.log.Warn("command queue full, dropping feed command", "action", cmd.Action)
			p.tracker.ResetEdges()
			return
		}
	}
}

// Tracker returns the poller's tracker.
func (p *Poller) Tracker() *Tracker { return p.tracker }
