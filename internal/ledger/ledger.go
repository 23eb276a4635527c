// Package ledger wraps the persistence store with fire-and-forget
// semantics: a write failure degrades the db_integrity flag but never
// interrupts the decision loop.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/metrics"
)

// rowsPerTrade is the expected row fan-out of one completed trade:
// two orders, two fills, one trade row.
const rowsPerTrade = 5

// integritySlack tolerates a couple of in-flight rows at shutdown.
const integritySlack = 2

// Recorder persists trading activity through a domain.Ledger and tracks
// write failures.
type Recorder struct {
	store    domain.Ledger
	kpi      *metrics.PaperMetrics
	logger   *slog.Logger
	failures atomic.Int64
}

// NewRecorder creates a Recorder. store may be nil, in which case every
// write is a no-op and integrity verification is skipped.
func NewRecorder(store domain.Ledger, kpi *metrics.PaperMetrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		kpi:    kpi,
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// RecordLeg persists one intent and its fill. Failures are logged and
// counted, never returned.
func (r *Recorder) RecordLeg(ctx context.Context, intent domain.OrderIntent, fill domain.FillResult) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordOrderAndFill(ctx, intent, fill); err != nil {
		r.failures.Add(1)
		r.logger.Warn("ledger write failed",
			slog.String("order_id", intent.ID),
			slog.String("error", err.Error()),
		)
	}
}

// RecordTrade persists the welded trade row.
func (r *Recorder) RecordTrade(ctx context.Context, trade domain.TradeResult) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordTradeComplete(ctx, trade); err != nil {
		r.failures.Add(1)
		r.logger.Warn("ledger trade write failed",
			slog.String("candidate_id", trade.CandidateID),
			slog.String("error", err.Error()),
		)
	}
}

// VerifyIntegrity compares persisted row counts against the expected
// fan-out for the given number of closed trades and records the result in
// the KPI accumulator. Called once at shutdown.
func (r *Recorder) VerifyIntegrity(ctx context.Context, closedTrades int64) {
	if r.store == nil {
		r.kpi.SetDBIntegrity(true, "ledger disabled")
		return
	}

	counts, err := r.store.GetCounts(ctx)
	if err != nil {
		r.kpi.SetDBIntegrity(false, fmt.Sprintf("count query failed: %v", err))
		return
	}

	total := counts.Orders + counts.Fills + counts.Trades
	expected := closedTrades * rowsPerTrade
	diff := total - expected
	if diff < 0 {
		diff = -diff
	}

	ok := diff <= integritySlack && r.failures.Load() == 0
	msg := fmt.Sprintf("rows=%d expected=%d write_failures=%d", total, expected, r.failures.Load())
	r.kpi.SetDBIntegrity(ok, msg)
	if !ok {
		r.logger.Error("ledger integrity check failed", slog.String("detail", msg))
	}
}
