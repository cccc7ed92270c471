package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vshell/internal/server/api"
	"vshell/internal/server/config"
	"vshell/internal/server/database"
	"vshell/internal/server/service"
	"vshell/internal/server/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited cleanly")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"log_dir", cfg.LogDir,
		"log_retention", cfg.LogRetention,
		"seed_source", cfg.SeedSource != "",
		"max_sessions", cfg.MaxSessions,
	)

	db, events, stats, err := openEventStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	store := storage.NewFileSystemStore(cfg.LogDir)
	if err := store.EnsureDir(); err != nil {
		return fmt.Errorf("log storage: %w", err)
	}
	slog.Info("log storage initialized", "path", cfg.LogDir)

	svc := service.NewSessionService(cfg, store, events)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	cleanup := storage.NewCleanupService(store, svc, cfg.LogRetention, cfg.CleanupInterval)
	cleanup.Start(bgCtx)
	reaper := service.NewReaper(svc, cfg.ReaperInterval)
	reaper.Start(bgCtx)

	e, limiter := api.SetupRouter(api.NewHandler(svc, store, db, stats), cfg)

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		slog.Info("starting server", "addr", addr)
		serveErr <- e.Start(addr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	// drain in-flight requests before tearing down sessions
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	limiter.Stop()

	bgCancel()
	cleanup.Wait()
	reaper.Wait()

	svc.CloseAll(shutdownCtx)
	return runErr
}

// openEventStore connects to Postgres when DATABASE_URL is set. Without a
// database the returned interfaces stay nil and events go to the session
// logs only.
func openEventStore(ctx context.Context, cfg *config.Config) (*database.DB, service.EventStore, api.StatsSource, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("no database configured, events go to session logs only")
		return nil, nil, nil, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations complete")

	repo := database.NewRepository(db)
	return db, repo, repo, nil
}
