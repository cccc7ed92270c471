// Package eventlog records the events produced by shell sessions.
package eventlog

import (
	"context"
	"errors"
	"log/slog"

	"vshell/internal/shell"
)

// Sink receives one event per executed command line.
type Sink interface {
	Record(ctx context.Context, ev shell.Event) error
}

// Multi forwards every event to all sinks. A failing sink does not stop
// the others.
type Multi []Sink

func (m Multi) Record(ctx context.Context, ev shell.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(context.Context, shell.Event) error { return nil }

// SlogSink writes events to a structured logger. Failed commands are
// logged at warn level.
type SlogSink struct {
	Logger *slog.Logger
	Attrs  []any
}

func (s SlogSink) Record(ctx context.Context, ev shell.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := append([]any{
		"verb", ev.Verb,
		"line", ev.Message,
		"path", ev.Path,
	}, s.Attrs...)
	if ev.Error != "" {
		args = append(args, "kind", ev.Kind, "error", ev.Error)
		logger.WarnContext(ctx, "command failed", args...)
		return nil
	}
	logger.InfoContext(ctx, "command executed", args...)
	return nil
}
