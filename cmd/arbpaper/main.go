// Command arbpaper is the paper-trading engine entry point. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and runs the decision loop until the run ends or a safety guard trips.
//
// Exit codes: 0 clean run, 1 startup or runtime failure, 2 safety guard
// trip, 3 admin-commanded stop, 4 signal-interrupted run (evidence is
// flushed before exiting).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/minkyupark/arbpaper/internal/app"
	"github.com/minkyupark/arbpaper/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("arbpaper starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		switch {
		case errors.Is(err, app.ErrInterrupted):
			logger.Warn("run interrupted by signal, evidence flushed")
			application.Close()
			os.Exit(4)
		case errors.Is(err, app.ErrGuardTripped):
			logger.Error("run stopped by safety guard", slog.String("error", err.Error()))
			application.Close()
			os.Exit(2)
		case errors.Is(err, app.ErrAdminStop):
			logger.Warn("run stopped by admin command", slog.String("error", err.Error()))
			application.Close()
			os.Exit(3)
		default:
			logger.Error("run exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("arbpaper stopped")
}
