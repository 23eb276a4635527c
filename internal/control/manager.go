// Package control implements the admin command state machine. Mode changes
// go through defined commands only, each producing an append-only audit
// record; the audit trail is the sole source of truth for who changed what,
// when.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// CommandResult reports a completed command's before/after state.
type CommandResult struct {
	Command string             `json:"command"`
	Before  domain.ControlMode `json:"before"`
	After   domain.ControlMode `json:"after"`
}

// Manager applies admin commands against the persisted control state.
type Manager struct {
	store  domain.ControlStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(store domain.ControlStore, audit domain.AuditStore, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		audit:  audit,
		logger: logger.With(slog.String("component", "control")),
	}
}

// Pause transitions RUNNING -> PAUSED. Forbidden from any other state,
// including (especially) PANIC.
func (m *Manager) Pause(ctx context.Context, actor, reason string) (CommandResult, error) {
	return m.transition(ctx, "pause", actor, reason, func(mode domain.ControlMode) (domain.ControlMode, error) {
		if mode != domain.ModeRunning {
			return mode, fmt.Errorf("control: pause from %s: %w", mode, domain.ErrInvalidTransition)
		}
		return domain.ModePaused, nil
	})
}

// Resume transitions PAUSED -> RUNNING only.
func (m *Manager) Resume(ctx context.Context, actor, reason string) (CommandResult, error) {
	return m.transition(ctx, "resume", actor, reason, func(mode domain.ControlMode) (domain.ControlMode, error) {
		if mode != domain.ModePaused {
			return mode, fmt.Errorf("control: resume from %s: %w", mode, domain.ErrInvalidTransition)
		}
		return domain.ModeRunning, nil
	})
}

// Stop requests a graceful stop from any state.
func (m *Manager) Stop(ctx context.Context, actor, reason string) (CommandResult, error) {
	return m.transition(ctx, "stop", actor, reason, func(mode domain.ControlMode) (domain.ControlMode, error) {
		if mode.Terminal() {
			return mode, fmt.Errorf("control: stop from terminal %s: %w", mode, domain.ErrInvalidTransition)
		}
		return domain.ModeStopping, nil
	})
}

// Panic transitions to the terminal PANIC state. Never reversible.
func (m *Manager) Panic(ctx context.Context, actor, reason string) (CommandResult, error) {
	return m.transition(ctx, "panic", actor, reason, func(mode domain.ControlMode) (domain.ControlMode, error) {
		return domain.ModePanic, nil
	})
}

// EmergencyClose transitions to the terminal EMERGENCY_CLOSE state. Never
// reversible.
func (m *Manager) EmergencyClose(ctx context.Context, actor, reason string) (CommandResult, error) {
	return m.transition(ctx, "emergency_close", actor, reason, func(mode domain.ControlMode) (domain.ControlMode, error) {
		return domain.ModeEmergencyClose, nil
	})
}

// transition loads state, applies the step, persists, and audits. On a step
// error the persisted state is left untouched.
func (m *Manager) transition(ctx context.Context, command, actor, reason string, step func(domain.ControlMode) (domain.ControlMode, error)) (CommandResult, error) {
	if reason == "" {
		return CommandResult{}, fmt.Errorf("control: %s: reason is required", command)
	}

	state, err := m.store.Get(ctx)
	if err != nil {
		return CommandResult{}, fmt.Errorf("control: %s: load state: %w", command, err)
	}

	before := state.Mode
	after, err := step(before)
	if err != nil {
		return CommandResult{Command: command, Before: before, After: before}, err
	}

	state.Mode = after
	state.UpdatedAt = time.Now().UTC()
	state.UpdatedBy = actor
	if err := m.store.Set(ctx, state); err != nil {
		return CommandResult{}, fmt.Errorf("control: %s: persist state: %w", command, err)
	}

	m.auditLog(ctx, command, before, after, actor, reason)
	m.logger.Info("control command applied",
		slog.String("command", command),
		slog.String("before", string(before)),
		slog.String("after", string(after)),
		slog.String("actor", actor),
	)
	return CommandResult{Command: command, Before: before, After: after}, nil
}

// BlacklistAdd adds a symbol to the blacklist. Independent of mode; the
// blacklist survives every mode transition.
func (m *Manager) BlacklistAdd(ctx context.Context, symbol, actor, reason string) error {
	return m.mutateBlacklist(ctx, "blacklist_add", symbol, actor, reason, true)
}

// BlacklistRemove removes a symbol from the blacklist.
func (m *Manager) BlacklistRemove(ctx context.Context, symbol, actor, reason string) error {
	return m.mutateBlacklist(ctx, "blacklist_remove", symbol, actor, reason, false)
}

func (m *Manager) mutateBlacklist(ctx context.Context, command, symbol, actor, reason string, add bool) error {
	if reason == "" {
		return fmt.Errorf("control: %s: reason is required", command)
	}
	if symbol == "" {
		return fmt.Errorf("control: %s: symbol is required", command)
	}

	state, err := m.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("control: %s: load state: %w", command, err)
	}
	if state.Blacklist == nil {
		state.Blacklist = make(map[string]bool)
	}
	if add {
		state.Blacklist[symbol] = true
	} else {
		delete(state.Blacklist, symbol)
	}
	state.UpdatedAt = time.Now().UTC()
	state.UpdatedBy = actor
	if err := m.store.Set(ctx, state); err != nil {
		return fmt.Errorf("control: %s: persist state: %w", command, err)
	}

	m.auditLog(ctx, command+":"+symbol, state.Mode, state.Mode, actor, reason)
	return nil
}

// Status returns the current persisted state.
func (m *Manager) Status(ctx context.Context) (domain.ControlState, error) {
	state, err := m.store.Get(ctx)
	if err != nil {
		return domain.ControlState{}, fmt.Errorf("control: status: %w", err)
	}
	return state, nil
}

func (m *Manager) auditLog(ctx context.Context, command string, before, after domain.ControlMode, actor, reason string) {
	rec := domain.AuditRecord{
		ID:        uuid.New().String(),
		Command:   command,
		Before:    before,
		After:     after,
		Actor:     actor,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err := m.audit.Append(ctx, rec); err != nil {
		m.logger.Warn("audit append failed",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
	}
}
