package live

import (
	"context"
	"log/slog"
	"time"
)

// sweepInterval caps how often idle sessions are looked for.
const sweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically closes live
// sessions idle for longer than ttl.
func StartSweeper(ctx context.Context, m *Manager, ttl time.Duration) {
	interval := sweepInterval
	if ttl/2 < interval {
		interval = ttl / 2
	}
	if interval <= 0 {
		slog.Info("Idle sweeper disabled", "ttl", ttl)
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Idle sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := m.CloseIdle(ttl); n > 0 {
					slog.Info("Idle sweeper closed sessions", "count", n, "remaining", m.Count())
				}
			case <-ctx.Done():
				slog.Info("Idle sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
