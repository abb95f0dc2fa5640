package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/seandooa/cg4002-capstone-code/internal/feedback"
	"github.com/seandooa/cg4002-capstone-code/internal/metrics"
	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
	"github.com/seandooa/cg4002-capstone-code/internal/workout"
)

// SchedulerConfig holds the broadcast intervals.
type SchedulerConfig struct {
	MetricsInterval  time.Duration
	FeedbackInterval time.Duration
	SessionTTL       time.Duration
}

// Scheduler periodically pushes performance metrics to every open device
// and, less often, coaching feedback.
type Scheduler struct {
	reg      *registry.Registry
	metrics  workout.Source
	feedback feedback.Source
	cfg      SchedulerConfig
	log      *slog.Logger
	now      func() time.Time

	// Owned by the Run goroutine.
	lastFeedback map[string]time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(reg *registry.Registry, ms workout.Source, fs feedback.Source, cfg SchedulerConfig, log *slog.Logger) *Scheduler {
	return &Scheduler{
		reg:          reg,
		metrics:      ms,
		feedback:     fs,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
		lastFeedback: make(map[string]time.Time),
	}
}

// Run broadcasts every MetricsInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("broadcast scheduler started",
		"metrics_source", s.metrics.Name(), "feedback_source", s.feedback.Name(),
		"metrics_interval", s.cfg.MetricsInterval, "feedback_interval", s.cfg.FeedbackInterval)

	ticker := time.NewTicker(s.cfg.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cycle(s.now())
		}
	}
}

func (s *Scheduler) cycle(now time.Time) {
	start := time.Now()
	defer func() { metrics.BroadcastDuration.Observe(time.Since(start).Seconds()) }()

	deliveries := s.reg.Sample(s.metrics, now)
	seen := make(map[string]bool, len(deliveries))
	for _, d := range deliveries {
		seen[d.DeviceID] = true
		if d.HasMetrics {
			s.send(d, protocol.NewMetrics(d.Metrics))
		}
		if s.feedbackDue(d.DeviceID, now) {
			if fb, ok := s.feedback.Next(d.ExerciseType); ok {
				s.send(d, protocol.NewFeedback(fb))
			}
		}
	}
	for id := range s.lastFeedback {
		if !seen[id] {
			delete(s.lastFeedback, id)
		}
	}

	if n := s.reg.EvictSessions(now, s.cfg.SessionTTL); n > 0 {
		s.log.Info("evicted idle sessions", "count", n)
	}
}

// feedbackDue reports whether a device's feedback interval has elapsed. A
// device is due on the first cycle that sees it.
func (s *Scheduler) feedbackDue(deviceID string, now time.Time) bool {
	if last, ok := s.lastFeedback[deviceID]; ok && now.Sub(last) < s.cfg.FeedbackInterval {
		return false
	}
	s.lastFeedback[deviceID] = now
	return true
}

func (s *Scheduler) send(d registry.Delivery, msg protocol.Outbound) {
	err := d.Conn.Send(msg)
	metrics.Sent(msg.Type, err)
	if err != nil {
		s.log.Warn("broadcast send failed", "device_id", d.DeviceID, "kind", msg.Type, "error", err)
	}
}
