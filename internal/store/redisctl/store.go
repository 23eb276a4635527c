// Package redisctl persists the admin control state in Redis so the engine
// and the admin CLI observe the same mode and blacklist across processes.
package redisctl

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minkyupark/arbpaper/internal/domain"
)

const stateKey = "arbpaper:control:state"

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Store implements domain.ControlStore on Redis. The whole control state is
// stored as one JSON value; single-key reads and writes keep the mode and
// blacklist mutually consistent without a lock.
type Store struct {
	rdb *redis.Client
}

// controlStateDoc is the wire shape of the persisted state.
type controlStateDoc struct {
	Mode      string    `json:"mode"`
	Blacklist []string  `json:"blacklist"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg ClientConfig) (*Store, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisctl: ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Get reads the control state. A missing key means a fresh deployment and
// yields the default RUNNING state with an empty blacklist.
func (s *Store) Get(ctx context.Context) (domain.ControlState, error) {
	raw, err := s.rdb.Get(ctx, stateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ControlState{
			Mode:      domain.ModeRunning,
			Blacklist: map[string]bool{},
		}, nil
	}
	if err != nil {
		return domain.ControlState{}, fmt.Errorf("redisctl: get state: %w", err)
	}

	var doc controlStateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.ControlState{}, fmt.Errorf("redisctl: decode state: %w", err)
	}

	state := domain.ControlState{
		Mode:      domain.ControlMode(doc.Mode),
		Blacklist: make(map[string]bool, len(doc.Blacklist)),
		UpdatedAt: doc.UpdatedAt,
		UpdatedBy: doc.UpdatedBy,
	}
	for _, sym := range doc.Blacklist {
		state.Blacklist[sym] = true
	}
	return state, nil
}

// Set overwrites the control state.
func (s *Store) Set(ctx context.Context, state domain.ControlState) error {
	doc := controlStateDoc{
		Mode:      string(state.Mode),
		Blacklist: make([]string, 0, len(state.Blacklist)),
		UpdatedAt: state.UpdatedAt,
		UpdatedBy: state.UpdatedBy,
	}
	for sym, on := range state.Blacklist {
		if on {
			doc.Blacklist = append(doc.Blacklist, sym)
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redisctl: encode state: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redisctl: set state: %w", err)
	}
	return nil
}
