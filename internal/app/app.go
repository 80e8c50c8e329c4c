// Package app provides the top-level application lifecycle. It wires the
// exchange client, stores, caches, blob storage and notifications, then runs
// the configured operating mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/config"
)

// EventError is the notification event sent when a mode exits with an error.
const EventError = "error"

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, runs the configured mode and blocks until it
// returns or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "server":
		err = a.ServerMode(ctx, deps)
	case "refresh":
		err = a.RefreshMode(ctx, deps)
	case "full":
		err = a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		// ctx may already be done; the alert gets its own deadline.
		alertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if nerr := deps.Notifier.Notify(alertCtx, EventError, "hlchallenge stopped", err.Error()); nerr != nil {
			a.logger.Warn("app: error notification failed", slog.String("error", nerr.Error()))
		}
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
