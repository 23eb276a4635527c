package control

import (
	"context"
	"sync"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// MemStore is an in-process ControlStore and AuditStore, used in mock mode
// where no Redis or Postgres is configured.
type MemStore struct {
	mu    sync.Mutex
	state domain.ControlState
	audit []domain.AuditRecord
}

// NewMemStore creates a MemStore starting in RUNNING mode.
func NewMemStore() *MemStore {
	return &MemStore{
		state: domain.ControlState{
			Mode:      domain.ModeRunning,
			Blacklist: map[string]bool{},
		},
	}
}

// Get returns a copy of the current state.
func (s *MemStore) Get(ctx context.Context) (domain.ControlState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Blacklist = make(map[string]bool, len(s.state.Blacklist))
	for k, v := range s.state.Blacklist {
		out.Blacklist[k] = v
	}
	return out, nil
}

// Set replaces the current state.
func (s *MemStore) Set(ctx context.Context, state domain.ControlState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// Append records an audit entry.
func (s *MemStore) Append(ctx context.Context, rec domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, rec)
	return nil
}

// List returns the most recent audit entries, newest first.
func (s *MemStore) List(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditRecord, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
