package storage

import (
	"context"
	"log/slog"
	"time"
)

// Sessions is what cleanup needs to know about the sessions behind the logs.
type Sessions interface {
	// Active reports whether a session is still open.
	Active(sessionID string) bool
	// Forget is called after the log of an ended session is deleted.
	Forget(sessionID string)
}

// CleanupService periodically removes session logs older than the
// retention period. Logs of sessions that are still open are kept.
type CleanupService struct {
	store     Store
	sessions  Sessions
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	done      chan struct{}
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(store Store, sessions Sessions, retention, interval time.Duration) *CleanupService {
	return &CleanupService{
		store:     store,
		sessions:  sessions,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	slog.Info("log cleanup service started", "interval", cs.interval, "retention", cs.retention)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		cs.runCleanup()

		for {
			select {
			case <-ticker.C:
				cs.runCleanup()
			case <-ctx.Done():
				slog.Info("log cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

func (cs *CleanupService) runCleanup() (cleaned, failed int) {
	logs, err := cs.store.List()
	if err != nil {
		slog.Error("failed to list session logs", "error", err)
		return 0, 0
	}

	cutoff := cs.now().Add(-cs.retention)
	for _, l := range logs {
		if !l.ModTime.Before(cutoff) || cs.sessions.Active(l.SessionID) {
			continue
		}
		if err := cs.store.Delete(l.SessionID); err != nil {
			slog.Error("failed to delete session log",
				"session_id", l.SessionID,
				"error", err,
			)
			failed++
			continue
		}
		cs.sessions.Forget(l.SessionID)
		cleaned++
	}

	if cleaned > 0 || failed > 0 {
		slog.Info("log cleanup cycle complete",
			"cleaned", cleaned,
			"failed", failed,
			"total", len(logs),
		)
	}
	return cleaned, failed
}
