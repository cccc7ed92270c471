package service

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically closes sessions that have been idle longer than the
// configured timeout.
type Reaper struct {
	sessions *SessionService
	interval time.Duration
	done     chan struct{}
}

// NewReaper creates a new idle session reaper.
func NewReaper(sessions *SessionService, interval time.Duration) *Reaper {
	return &Reaper{
		sessions: sessions,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the reaper loop in a background goroutine.
func (r *Reaper) Start(ctx context.Context) {
	slog.Info("session reaper started", "interval", r.interval, "idle_timeout", r.sessions.cfg.SessionIdleTimeout)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := r.sessions.ReapIdle(ctx); n > 0 {
					slog.Info("reaper cycle complete", "reaped", n, "open", r.sessions.Count())
				}
			case <-ctx.Done():
				slog.Info("session reaper stopping")
				close(r.done)
				return
			}
		}
	}()
}

// Wait blocks until the reaper has fully stopped.
func (r *Reaper) Wait() {
	<-r.done
}
