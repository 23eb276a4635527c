package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

func trade(netPnL float64) domain.TradeResult {
	return domain.TradeResult{
		FeesTotal:    decimal.NewFromFloat(0.1),
		SlippageCost: decimal.NewFromFloat(0.05),
		GrossPnL:     decimal.NewFromFloat(netPnL + 0.15),
		NetPnLFull:   decimal.NewFromFloat(netPnL),
	}
}

func TestRejectHistogram(t *testing.T) {
	m := New(time.Now())

	t.Run("total_equals_sum", func(t *testing.T) {
		m.Reject(RejectFXStale)
		m.Reject(RejectFXStale)
		m.Reject(RejectNotProfitable)
		m.Reject(RejectOBIThreshold)

		snap := m.Snapshot(time.Now())
		var sum int64
		for _, v := range snap.RejectReasons {
			sum += v
		}
		if snap.RejectTotal != sum {
			t.Errorf("reject_total %d != histogram sum %d", snap.RejectTotal, sum)
		}
		if snap.RejectTotal != 4 {
			t.Errorf("reject_total = %d, want 4", snap.RejectTotal)
		}
	})

	t.Run("unknown_reason_folds_to_other", func(t *testing.T) {
		m.Reject("some_reason_nobody_registered")
		snap := m.Snapshot(time.Now())
		if snap.RejectReasons[RejectOther] != 1 {
			t.Errorf("other = %d, want 1", snap.RejectReasons[RejectOther])
		}
		if _, ok := snap.RejectReasons["some_reason_nobody_registered"]; ok {
			t.Error("unknown reason leaked into the histogram key set")
		}
	})

	t.Run("key_set_is_closed", func(t *testing.T) {
		snap := m.Snapshot(time.Now())
		if len(snap.RejectReasons) != len(RejectReasons) {
			t.Errorf("histogram has %d keys, want %d", len(snap.RejectReasons), len(RejectReasons))
		}
		for _, r := range RejectReasons {
			if _, ok := snap.RejectReasons[r]; !ok {
				t.Errorf("reason %q missing from histogram", r)
			}
		}
	})
}

func TestRecordTrade(t *testing.T) {
	t.Run("win_loss_and_streak", func(t *testing.T) {
		m := New(time.Now())
		m.RecordTrade(trade(10))
		m.RecordTrade(trade(-5))
		m.RecordTrade(trade(-5))
		m.RecordTrade(trade(-5))

		snap := m.Snapshot(time.Now())
		if snap.ClosedTrades != 4 || snap.Wins != 1 || snap.Losses != 3 {
			t.Errorf("closed=%d wins=%d losses=%d", snap.ClosedTrades, snap.Wins, snap.Losses)
		}
		if snap.LossStreak != 3 {
			t.Errorf("loss streak = %d, want 3", snap.LossStreak)
		}

		m.RecordTrade(trade(1))
		if s := m.Snapshot(time.Now()); s.LossStreak != 0 {
			t.Errorf("win did not reset loss streak: %d", s.LossStreak)
		}
	})

	t.Run("zero_pnl_counts_as_loss", func(t *testing.T) {
		m := New(time.Now())
		m.RecordTrade(trade(0))
		snap := m.Snapshot(time.Now())
		if snap.Wins != 0 || snap.Losses != 1 {
			t.Errorf("wins=%d losses=%d for zero-pnl trade", snap.Wins, snap.Losses)
		}
	})

	t.Run("friction_totals_accumulate", func(t *testing.T) {
		m := New(time.Now())
		m.RecordTrade(trade(10))
		m.RecordTrade(trade(20))
		snap := m.Snapshot(time.Now())
		if !snap.FeesTotal.Equal(decimal.NewFromFloat(0.2)) {
			t.Errorf("fees = %s, want 0.2", snap.FeesTotal)
		}
		if !snap.NetPnL.Equal(decimal.NewFromInt(30)) {
			t.Errorf("net pnl = %s, want 30", snap.NetPnL)
		}
	})
}

func TestSnapshotConsistency(t *testing.T) {
	m := New(time.Now())
	for i := 0; i < 10; i++ {
		m.RecordTrade(trade(float64(i%3 - 1)))
	}

	snap := m.Snapshot(time.Now())
	if snap.Wins+snap.Losses != snap.ClosedTrades {
		t.Errorf("wins %d + losses %d != closed %d", snap.Wins, snap.Losses, snap.ClosedTrades)
	}
	if snap.Wins > snap.ClosedTrades {
		t.Error("wins exceed closed trades")
	}
	wantRate := float64(snap.Wins) / float64(snap.ClosedTrades)
	if snap.Winrate != wantRate {
		t.Errorf("winrate %v, want %v", snap.Winrate, wantRate)
	}

	// Mutations after snapshot must not leak into the held copy.
	before := snap.RejectTotal
	m.Reject(RejectSimReject)
	if snap.RejectTotal != before {
		t.Error("snapshot mutated after the fact")
	}
}

func TestAvgPnLPerTrade(t *testing.T) {
	if !(Snapshot{}).AvgPnLPerTrade().IsZero() {
		t.Error("avg pnl should be zero with no trades")
	}
	s := Snapshot{ClosedTrades: 4, NetPnL: decimal.NewFromInt(10)}
	if !s.AvgPnLPerTrade().Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("avg = %s, want 2.5", s.AvgPnLPerTrade())
	}
}

func TestObserveTickLatency(t *testing.T) {
	m := New(time.Now())
	for i := 0; i < latencyRingCap+100; i++ {
		m.ObserveTickLatency(time.Duration(i) * time.Millisecond)
	}
	snap := m.Snapshot(time.Now())
	if len(snap.TickLatenciesMs) != latencyRingCap {
		t.Errorf("ring grew to %d, cap is %d", len(snap.TickLatenciesMs), latencyRingCap)
	}
	if p := snap.LatencyPercentileMs(0.5); p <= 0 {
		t.Errorf("p50 = %v", p)
	}
}
