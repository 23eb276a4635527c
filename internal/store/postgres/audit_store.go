package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. The audit log is
// append-only: admin commands are recorded, never updated or deleted.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append records one admin command.
func (s *AuditStore) Append(ctx context.Context, rec domain.AuditRecord) error {
	const query = `
		INSERT INTO audit_log (id, command, mode_before, mode_after, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Command,
		string(rec.Before), string(rec.After),
		rec.Actor, rec.Reason, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append audit record %s: %w", rec.Command, err)
	}
	return nil
}

// List returns the most recent audit records, newest first.
func (s *AuditStore) List(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	query := `SELECT id, command, mode_before, mode_after, actor, reason, created_at
		FROM audit_log ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var before, after string
		if err := rows.Scan(&rec.ID, &rec.Command, &before, &after, &rec.Actor, &rec.Reason, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan audit record: %w", err)
		}
		rec.Before = domain.ControlMode(before)
		rec.After = domain.ControlMode(after)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit records rows: %w", err)
	}
	return records, nil
}
