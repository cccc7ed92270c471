package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vshell/internal/shell"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// Repository stores sessions and the events they produce.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateSession inserts a new session record.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sessions (id, username, hostname, token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		s.ID,
		s.Username,
		s.Hostname,
		s.TokenHash,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by its ID. It outlives the server process,
// so ended sessions can still be authorized after a restart.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	s := &Session{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, username, hostname, token_hash, created_at, closed_at
		FROM sessions WHERE id = $1
	`, id).Scan(
		&s.ID,
		&s.Username,
		&s.Hostname,
		&s.TokenHash,
		&s.CreatedAt,
		&s.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// CloseSession marks a session closed. Closing twice keeps the first time.
func (r *Repository) CloseSession(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE sessions SET closed_at = COALESCE(closed_at, $2) WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RecordEvent appends an event to a session.
func (r *Repository) RecordEvent(ctx context.Context, sessionID string, ev shell.Event) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO events (session_id, at, verb, message, error, kind, path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		sessionID,
		ev.Time,
		ev.Verb,
		ev.Message,
		nullIfEmpty(ev.Error),
		nullIfEmpty(ev.Kind),
		ev.Path,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// ListEvents returns the events of a session in execution order.
func (r *Repository) ListEvents(ctx context.Context, sessionID string) ([]shell.Event, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT at, verb, message, error, kind, path
		FROM events WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []shell.Event
	for rows.Next() {
		var (
			ev      shell.Event
			errText *string
			kind    *string
		)
		if err := rows.Scan(
			&ev.Time,
			&ev.Verb,
			&ev.Message,
			&errText,
			&kind,
			&ev.Path,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if errText != nil {
			ev.Error = *errText
		}
		if kind != nil {
			ev.Kind = *kind
		}
		ev.Time = ev.Time.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetStats returns aggregate server statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM sessions WHERE closed_at IS NULL),
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM events WHERE error IS NOT NULL)
	`).Scan(
		&stats.TotalSessions,
		&stats.OpenSessions,
		&stats.TotalEvents,
		&stats.FailedEvents,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
