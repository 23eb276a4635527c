// Package app provides the top-level application lifecycle for the paper
// trading engine. It wires together all dependencies (sources, simulator,
// ledger, control store, evidence, watcher) and runs the decision loop until
// the run ends or a safety guard trips.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/minkyupark/arbpaper/internal/config"
)

// Distinguished run outcomes. The binary maps these to non-zero exit codes
// so orchestration can tell a guard stop from an operator stop.
var (
	ErrGuardTripped = errors.New("run stopped by safety guard")
	ErrAdminStop    = errors.New("run stopped by admin control")
	ErrInterrupted  = errors.New("run interrupted by signal")
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	runID   string
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		runID:  uuid.New().String(),
	}
}

// RunID returns this session's unique identifier.
func (a *App) RunID() string { return a.runID }

// Run is the main entry point. It wires all dependencies, runs the engine
// loop until the context is cancelled or a stop condition fires, and flushes
// the evidence set before returning.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting paper run",
		slog.String("run_id", a.runID),
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	engine := NewEngine(a.cfg, deps, a.runID, a.logger)
	return engine.Run(ctx)
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
