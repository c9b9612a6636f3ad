package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sova-tungnv/web-ai/internal/logger"
)

// WatchdogConfig bounds how long the hub may go without frames.
type WatchdogConfig struct {
	// StallAfter is the silence after which the stream counts as stalled.
	StallAfter time.Duration `yaml:"stall_after" json:"stall_after"`
	// Retries bounds the readiness polls made by WaitReady.
	Retries int `yaml:"retries" json:"retries"`
	// Backoff is the pause between readiness polls and stall checks.
	Backoff time.Duration `yaml:"backoff" json:"backoff"`
}

// DefaultWatchdogConfig polls every 2s, ten times, and treats 5s of silence
// as a stall.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		StallAfter: 5 * time.Second,
		Retries:    10,
		Backoff:    2 * time.Second,
	}
}

// Validate checks the durations and retry budget.
func (c WatchdogConfig) Validate() error {
	if c.StallAfter <= 0 {
		return fmt.Errorf("stall_after must be positive, got %s", c.StallAfter)
	}
	if c.Backoff <= 0 {
		return fmt.Errorf("backoff must be positive, got %s", c.Backoff)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	return nil
}

// Watchdog watches a hub for readiness and stalls. A stalled stream is
// restarted once; if frames still do not arrive the failure is reported.
type Watchdog struct {
	hub    *Hub
	cfg    WatchdogConfig
	report func(error)
	log    *slog.Logger
}

// NewWatchdog creates a watchdog for hub. report receives persistent
// failures and may be nil.
func NewWatchdog(hub *Hub, cfg WatchdogConfig, report func(error)) *Watchdog {
	if report == nil {
		report = func(error) {}
	}
	return &Watchdog{
		hub:    hub,
		cfg:    cfg,
		report: report,
		log:    logger.For("watchdog"),
	}
}

// WaitReady polls until the hub has delivered a frame. It gives up after
// Retries polls with ErrStreamStalled.
func (w *Watchdog) WaitReady(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if !w.hub.LastFrameAt().IsZero() {
			return nil
		}
		if attempt >= w.cfg.Retries {
			return fmt.Errorf("%w: no frame after %d polls", ErrStreamStalled, attempt)
		}
		w.log.Debug("waiting for first frame", "attempt", attempt+1, "retries", w.cfg.Retries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.Backoff):
		}
	}
}

// Run checks the hub every Backoff until ctx is done. It returns
// ErrStreamStalled after reporting it when a restart did not help.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Backoff)
	defer ticker.Stop()

	restarted := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if !w.stalled(now) {
				restarted = false
				continue
			}
			if restarted {
				err := fmt.Errorf("%w: no frame since %s", ErrStreamStalled, w.hub.LastFrameAt().Format(time.RFC3339))
				w.log.Error("stream still stalled after restart", "error", err)
				w.report(err)
				return err
			}

			w.log.Warn("stream stalled, restarting", "silence", w.cfg.StallAfter)
			if err := w.hub.Restart(ctx); err != nil {
				w.log.Error("restart stream", "error", err)
				w.report(err)
				return err
			}
			restarted = true
		}
	}
}

func (w *Watchdog) stalled(now time.Time) bool {
	last := w.hub.LastFrameAt()
	if last.IsZero() {
		last = w.hub.OpenedAt()
	}
	if last.IsZero() {
		return false
	}
	return now.Sub(last) > w.cfg.StallAfter
}
