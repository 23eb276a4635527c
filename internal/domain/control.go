package domain

import "time"

// ControlMode is the engine's externally commanded run mode.
type ControlMode string

const (
	ModeRunning        ControlMode = "running"
	ModePaused         ControlMode = "paused"
	ModeStopping       ControlMode = "stopping"
	ModePanic          ControlMode = "panic"
	ModeEmergencyClose ControlMode = "emergency_close"
)

// Terminal reports whether the mode is irreversible.
func (m ControlMode) Terminal() bool {
	return m == ModePanic || m == ModeEmergencyClose
}

// ControlState is the persisted admin-control state. Mode is mutated only
// through defined commands; the blacklist is mutated independently and
// survives mode transitions.
type ControlState struct {
	Mode      ControlMode
	Blacklist map[string]bool
	UpdatedAt time.Time
	UpdatedBy string
}

// AuditRecord is one append-only admin audit entry: who changed what, when,
// and why. The audit trail is the sole source of truth for control changes.
type AuditRecord struct {
	ID        string
	Command   string
	Before    ControlMode
	After     ControlMode
	Actor     string
	Reason    string
	Timestamp time.Time
}
