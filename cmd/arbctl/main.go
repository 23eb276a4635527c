// Command arbctl is the admin CLI for a running arbpaper engine. It mutates
// the shared control state (Redis) that the engine polls every tick, so
// commands take effect without restarting the engine.
//
// Usage:
//
//	arbctl -config config.toml -reason "why" <command> [symbol]
//
// Commands: pause, resume, stop, panic, emergency_close, blacklist_add,
// blacklist_remove, status, audit.
//
// Output is a single JSON document on stdout: {"status":"ok",...} on
// success, {"status":"error","message":...} on failure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"time"

	"github.com/minkyupark/arbpaper/internal/config"
	"github.com/minkyupark/arbpaper/internal/control"
	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/store/postgres"
	"github.com/minkyupark/arbpaper/internal/store/redisctl"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	reason := flag.String("reason", "", "reason for the command (required for mutations)")
	actor := flag.String("actor", "", "actor recorded in the audit trail (defaults to OS user)")
	flag.Parse()

	if flag.NArg() < 1 {
		fail("usage: arbctl [flags] <pause|resume|stop|panic|emergency_close|blacklist_add|blacklist_remove|status|audit> [symbol]")
	}
	command := flag.Arg(0)

	if *actor == "" {
		if u, err := user.Current(); err == nil {
			*actor = u.Username
		} else {
			*actor = "unknown"
		}
	}

	// CLI output is the JSON document; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(fmt.Sprintf("load config: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !cfg.Redis.Enabled {
		fail("arbctl requires redis (the shared control store); set redis.enabled = true")
	}
	store, err := redisctl.New(ctx, redisctl.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		fail(fmt.Sprintf("connect control store: %v", err))
	}
	defer store.Close()

	// Audit goes to Postgres when configured; otherwise commands still work
	// but the audit record stays process-local.
	var audit domain.AuditStore = control.NewMemStore()
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			fail(fmt.Sprintf("connect audit store: %v", err))
		}
		defer pgClient.Close()
		audit = postgres.NewAuditStore(pgClient.Pool())
	}

	mgr := control.NewManager(store, audit, logger)

	switch command {
	case "pause":
		emitResult(mgr.Pause(ctx, *actor, *reason))
	case "resume":
		emitResult(mgr.Resume(ctx, *actor, *reason))
	case "stop":
		emitResult(mgr.Stop(ctx, *actor, *reason))
	case "panic":
		emitResult(mgr.Panic(ctx, *actor, *reason))
	case "emergency_close":
		emitResult(mgr.EmergencyClose(ctx, *actor, *reason))

	case "blacklist_add", "blacklist_remove":
		if flag.NArg() < 2 {
			fail(fmt.Sprintf("%s requires a symbol argument", command))
		}
		symbol := flag.Arg(1)
		var err error
		if command == "blacklist_add" {
			err = mgr.BlacklistAdd(ctx, symbol, *actor, *reason)
		} else {
			err = mgr.BlacklistRemove(ctx, symbol, *actor, *reason)
		}
		if err != nil {
			fail(err.Error())
		}
		emit(map[string]any{"status": "ok", "command": command, "symbol": symbol})

	case "status":
		state, err := mgr.Status(ctx)
		if err != nil {
			fail(err.Error())
		}
		blacklist := make([]string, 0, len(state.Blacklist))
		for sym := range state.Blacklist {
			blacklist = append(blacklist, sym)
		}
		emit(map[string]any{
			"status":     "ok",
			"mode":       string(state.Mode),
			"blacklist":  blacklist,
			"updated_at": state.UpdatedAt,
			"updated_by": state.UpdatedBy,
		})

	case "audit":
		records, err := audit.List(ctx, 50)
		if err != nil {
			fail(err.Error())
		}
		emit(map[string]any{"status": "ok", "records": records})

	default:
		fail(fmt.Sprintf("unknown command %q", command))
	}
}

// emitResult prints a mode-transition outcome, including the before/after
// pair on rejected transitions.
func emitResult(res control.CommandResult, err error) {
	if err != nil {
		emit(map[string]any{
			"status":  "error",
			"message": err.Error(),
			"before":  res.Before,
			"after":   res.After,
		})
		os.Exit(1)
	}
	emit(map[string]any{
		"status":  "ok",
		"command": res.Command,
		"before":  res.Before,
		"after":   res.After,
	})
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(msg string) {
	emit(map[string]any{"status": "error", "message": msg})
	os.Exit(1)
}
