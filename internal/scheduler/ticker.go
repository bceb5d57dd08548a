// Package scheduler runs the posting cycle on a fixed interval and serves
// health and metrics endpoints for long-running deployments.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config configures the ticker loop.
type Config struct {
	// Name identifies the loop in logs.
	Name string

	// Interval between ticks.
	Interval time.Duration

	// RunOnStart fires one tick immediately.
	RunOnStart bool

	// OnTick is called on every tick. Ticks never overlap.
	OnTick func(ctx context.Context)
}

// Loop runs cfg.OnTick every cfg.Interval until ctx is canceled and returns
// the wrapped context error.
func Loop(ctx context.Context, cfg Config) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("ticker loop %s: interval must be positive, got %s", cfg.Name, cfg.Interval)
	}

	slog.Info("Starting ticker loop", "loop", cfg.Name, "interval", cfg.Interval)
	defer slog.Info("Ticker loop stopped", "loop", cfg.Name)

	if cfg.RunOnStart && cfg.OnTick != nil {
		cfg.OnTick(ctx)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, ctx.Err())
		case <-ticker.C:
			if cfg.OnTick != nil {
				cfg.OnTick(ctx)
			}
		}
	}
}

// ShouldPost reports whether a cron-driven run at now should post when the
// bot posts every everyHours hours. Values below 2 always post.
func ShouldPost(now time.Time, everyHours int) bool {
	if everyHours <= 1 {
		return true
	}
	return now.Hour()%everyHours == 0
}
