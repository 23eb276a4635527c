package ledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/metrics"
)

type fakeLedger struct {
	orders    int64
	trades    int64
	failWrite bool
	failCount bool
}

func (f *fakeLedger) RecordOrderAndFill(ctx context.Context, intent domain.OrderIntent, fill domain.FillResult) error {
	if f.failWrite {
		return errors.New("connection reset")
	}
	f.orders++
	return nil
}

func (f *fakeLedger) RecordTradeComplete(ctx context.Context, trade domain.TradeResult) error {
	if f.failWrite {
		return errors.New("connection reset")
	}
	f.trades++
	return nil
}

func (f *fakeLedger) GetCounts(ctx context.Context) (domain.LedgerCounts, error) {
	if f.failCount {
		return domain.LedgerCounts{}, errors.New("count query timeout")
	}
	// Each recorded leg is one order row plus one fill row.
	return domain.LedgerCounts{Orders: f.orders, Fills: f.orders, Trades: f.trades}, nil
}

func newRecorder(store domain.Ledger) (*Recorder, *metrics.PaperMetrics) {
	kpi := metrics.New(time.Now())
	return NewRecorder(store, kpi, slog.New(slog.DiscardHandler)), kpi
}

func TestRecorderNilStore(t *testing.T) {
	ctx := context.Background()
	r, kpi := newRecorder(nil)

	// Writes are no-ops, never panics.
	r.RecordLeg(ctx, domain.OrderIntent{ID: "o1"}, domain.FillResult{})
	r.RecordTrade(ctx, domain.TradeResult{CandidateID: "c1"})

	r.VerifyIntegrity(ctx, 100)
	snap := kpi.Snapshot(time.Now())
	if !snap.DBIntegrityOK {
		t.Errorf("disabled ledger degraded integrity: %s", snap.DBIntegrityMsg)
	}
	if snap.DBIntegrityMsg != "ledger disabled" {
		t.Errorf("msg = %q", snap.DBIntegrityMsg)
	}
}

func TestRecorderIntegrity(t *testing.T) {
	ctx := context.Background()

	t.Run("clean_run_passes", func(t *testing.T) {
		store := &fakeLedger{}
		r, kpi := newRecorder(store)

		for i := 0; i < 3; i++ {
			r.RecordLeg(ctx, domain.OrderIntent{}, domain.FillResult{})
			r.RecordLeg(ctx, domain.OrderIntent{}, domain.FillResult{})
			r.RecordTrade(ctx, domain.TradeResult{})
		}
		r.VerifyIntegrity(ctx, 3)

		snap := kpi.Snapshot(time.Now())
		if !snap.DBIntegrityOK {
			t.Errorf("integrity failed: %s", snap.DBIntegrityMsg)
		}
	})

	t.Run("in_flight_slack_tolerated", func(t *testing.T) {
		store := &fakeLedger{}
		r, kpi := newRecorder(store)

		r.RecordLeg(ctx, domain.OrderIntent{}, domain.FillResult{})
		r.RecordLeg(ctx, domain.OrderIntent{}, domain.FillResult{})
		r.RecordTrade(ctx, domain.TradeResult{})
		// One extra entry leg whose trade never closed.
		r.RecordLeg(ctx, domain.OrderIntent{}, domain.FillResult{})

		r.VerifyIntegrity(ctx, 1)
		if snap := kpi.Snapshot(time.Now()); !snap.DBIntegrityOK {
			t.Errorf("two in-flight rows should be within slack: %s", snap.DBIntegrityMsg)
		}
	})

	t.Run("large_row_gap_fails", func(t *testing.T) {
		store := &fakeLedger{}
		r, kpi := newRecorder(store)

		r.RecordLeg(ctx, domain.OrderIntent{}, domain.FillResult{})
		r.VerifyIntegrity(ctx, 10)

		if snap := kpi.Snapshot(time.Now()); snap.DBIntegrityOK {
			t.Error("48-row gap passed the integrity check")
		}
	})

	t.Run("write_failures_fail_integrity", func(t *testing.T) {
		store := &fakeLedger{failWrite: true}
		r, kpi := newRecorder(store)

		r.RecordLeg(ctx, domain.OrderIntent{ID: "o1"}, domain.FillResult{})
		r.VerifyIntegrity(ctx, 0)

		if snap := kpi.Snapshot(time.Now()); snap.DBIntegrityOK {
			t.Error("write failure not reflected in integrity flag")
		}
	})

	t.Run("count_query_failure", func(t *testing.T) {
		store := &fakeLedger{failCount: true}
		r, kpi := newRecorder(store)
		r.VerifyIntegrity(ctx, 0)

		if snap := kpi.Snapshot(time.Now()); snap.DBIntegrityOK {
			t.Error("unverifiable ledger reported as intact")
		}
	})
}
