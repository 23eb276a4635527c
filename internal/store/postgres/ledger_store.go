package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// LedgerStore implements domain.Ledger using PostgreSQL. Each completed
// trade produces five rows: two orders, two fills, one trade.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// RecordOrderAndFill persists one intent and its fill atomically.
func (s *LedgerStore) RecordOrderAndFill(ctx context.Context, intent domain.OrderIntent, fill domain.FillResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin order tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertOrder = `
		INSERT INTO orders (
			id, candidate_id, exchange, symbol, side, order_type,
			quote_amount, base_qty, qty_source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := tx.Exec(ctx, insertOrder,
		intent.ID, intent.CandidateID, intent.Exchange, intent.Symbol,
		string(intent.Side), string(intent.Type),
		intent.QuoteAmount.String(), intent.BaseQty.String(), string(intent.QtySource),
		intent.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert order %s: %w", intent.ID, err)
	}

	const insertFill = `
		INSERT INTO fills (
			order_id, filled_qty, filled_price, ref_price, fee,
			slippage_bps, latency_ms, partial_ratio, rejected, reject_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var rejectReason *string
	if fill.RejectReason != "" {
		rejectReason = &fill.RejectReason
	}
	if _, err := tx.Exec(ctx, insertFill,
		intent.ID, fill.FilledQty.String(), fill.FilledPrice.String(),
		fill.RefPrice.String(), fill.Fee.String(),
		fill.SlippageBps.String(), fill.LatencyMs, fill.PartialFillRatio.String(),
		fill.Rejected, rejectReason,
	); err != nil {
		return fmt.Errorf("postgres: insert fill for order %s: %w", intent.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit order %s: %w", intent.ID, err)
	}
	return nil
}

// RecordTradeComplete persists the welded trade row.
func (s *LedgerStore) RecordTradeComplete(ctx context.Context, trade domain.TradeResult) error {
	const query = `
		INSERT INTO trades (
			candidate_id, symbol, gross_pnl, fees_total, slippage_cost,
			latency_cost, partial_fill_penalty, spread_cost, net_pnl_full,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		trade.CandidateID, trade.Symbol,
		trade.GrossPnL.String(), trade.FeesTotal.String(), trade.SlippageCost.String(),
		trade.LatencyCost.String(), trade.PartialFillPenalty.String(), trade.SpreadCost.String(),
		trade.NetPnLFull.String(), trade.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", trade.CandidateID, err)
	}
	return nil
}

// GetCounts returns the persisted row tallies for the integrity check.
func (s *LedgerStore) GetCounts(ctx context.Context) (domain.LedgerCounts, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM fills),
			(SELECT COUNT(*) FROM trades)`

	var counts domain.LedgerCounts
	if err := s.pool.QueryRow(ctx, query).Scan(&counts.Orders, &counts.Fills, &counts.Trades); err != nil {
		return domain.LedgerCounts{}, fmt.Errorf("postgres: count ledger rows: %w", err)
	}
	return counts, nil
}
