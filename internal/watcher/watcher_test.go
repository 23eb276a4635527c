package watcher

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/metrics"
)

type fakeKPI struct {
	snap metrics.Snapshot
}

func (f *fakeKPI) Snapshot(now time.Time) metrics.Snapshot {
	s := f.snap
	s.SnapshotAt = now
	return s
}

type fakeSink struct {
	writes map[string]any
	lines  map[string]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{writes: map[string]any{}, lines: map[string]int{}}
}

func (s *fakeSink) WriteJSON(name string, v any) error {
	s.writes[name] = v
	return nil
}

func (s *fakeSink) AppendLine(name string, v any) error {
	s.lines[name]++
	return nil
}

type tripRecorder struct {
	count  int
	reason string
}

func (r *tripRecorder) stop(reason, diagnosis string) {
	r.count++
	r.reason = reason
}

func testWatcher(kpi *fakeKPI) (*Watcher, *fakeSink, *tripRecorder) {
	sink := newFakeSink()
	rec := &tripRecorder{}
	w := New(DefaultConfig(), kpi, sink, rec.stop, slog.New(slog.DiscardHandler))
	return w, sink, rec
}

// healthySnap is a baseline no guard objects to.
func healthySnap() metrics.Snapshot {
	return metrics.Snapshot{
		ClosedTrades: 30,
		Wins:         18,
		Losses:       12,
		Winrate:      0.6,
		NetPnL:       decimal.NewFromInt(500),
		FeesTotal:    decimal.NewFromInt(40),
	}
}

func TestGuards(t *testing.T) {
	now := time.Now()

	t.Run("healthy_run_never_trips", func(t *testing.T) {
		kpi := &fakeKPI{snap: healthySnap()}
		w, _, rec := testWatcher(kpi)
		for i := 0; i < 10; i++ {
			w.Check(now.Add(time.Duration(i) * time.Minute))
		}
		if rec.count != 0 {
			t.Errorf("tripped %d times on a healthy run (%s)", rec.count, rec.reason)
		}
	})

	t.Run("zero_win", func(t *testing.T) {
		snap := healthySnap()
		snap.Wins = 0
		snap.Winrate = 0
		kpi := &fakeKPI{snap: snap}
		w, _, rec := testWatcher(kpi)
		w.Check(now)
		if rec.reason != StopZeroWin {
			t.Errorf("reason = %q, want %q", rec.reason, StopZeroWin)
		}
	})

	t.Run("sustained_negative_edge", func(t *testing.T) {
		snap := healthySnap()
		snap.NetPnL = decimal.NewFromInt(-100)
		kpi := &fakeKPI{snap: snap}
		w, _, rec := testWatcher(kpi)

		w.Check(now)
		if rec.count != 0 {
			t.Fatal("tripped before the window elapsed")
		}
		w.Check(now.Add(DefaultConfig().NegEdgeWindow))
		if rec.reason != StopNegativeEdge {
			t.Errorf("reason = %q, want %q", rec.reason, StopNegativeEdge)
		}
	})

	t.Run("negative_edge_window_resets_on_recovery", func(t *testing.T) {
		kpi := &fakeKPI{snap: healthySnap()}
		kpi.snap.NetPnL = decimal.NewFromInt(-100)
		w, _, rec := testWatcher(kpi)

		w.Check(now)
		kpi.snap.NetPnL = decimal.NewFromInt(50)
		w.Check(now.Add(time.Minute))
		kpi.snap.NetPnL = decimal.NewFromInt(-100)
		w.Check(now.Add(DefaultConfig().NegEdgeWindow + time.Minute))
		if rec.count != 0 {
			t.Errorf("tripped %q after the window was reset", rec.reason)
		}
	})

	t.Run("max_drawdown", func(t *testing.T) {
		kpi := &fakeKPI{snap: healthySnap()}
		kpi.snap.NetPnL = decimal.NewFromInt(100)
		w, _, rec := testWatcher(kpi)

		w.Check(now)
		kpi.snap.NetPnL = decimal.NewFromInt(40)
		w.Check(now.Add(time.Minute))
		if rec.reason != StopMaxDrawdown {
			t.Errorf("reason = %q, want %q (60%% off peak)", rec.reason, StopMaxDrawdown)
		}
	})

	t.Run("consecutive_losses", func(t *testing.T) {
		snap := healthySnap()
		snap.LossStreak = 8
		kpi := &fakeKPI{snap: snap}
		w, _, rec := testWatcher(kpi)
		w.Check(now)
		if rec.reason != StopConsecutiveLoss {
			t.Errorf("reason = %q, want %q", rec.reason, StopConsecutiveLoss)
		}
	})

	t.Run("winrate_cap_needs_min_trades", func(t *testing.T) {
		snap := healthySnap()
		snap.ClosedTrades = 19
		snap.Wins = 19
		snap.Losses = 0
		snap.Winrate = 1.0
		kpi := &fakeKPI{snap: snap}
		w, _, rec := testWatcher(kpi)
		w.Check(now)
		if rec.count != 0 {
			t.Fatalf("tripped %q at 19 trades, below the minimum sample", rec.reason)
		}

		kpi.snap.ClosedTrades = 20
		kpi.snap.Wins = 20
		w.Check(now.Add(time.Minute))
		if rec.reason != StopWinrateCap {
			t.Errorf("reason = %q, want %q at 20 trades", rec.reason, StopWinrateCap)
		}
	})

	t.Run("zero_friction", func(t *testing.T) {
		snap := healthySnap()
		snap.FeesTotal = decimal.Zero
		kpi := &fakeKPI{snap: snap}
		w, _, rec := testWatcher(kpi)
		w.Check(now)
		if rec.reason != StopZeroFriction {
			t.Errorf("reason = %q, want %q", rec.reason, StopZeroFriction)
		}
	})

	t.Run("trade_starvation", func(t *testing.T) {
		kpi := &fakeKPI{snap: metrics.Snapshot{Opportunities: 100}}
		w, _, rec := testWatcher(kpi)
		w.Check(now)
		if rec.count != 0 {
			t.Fatal("tripped before the starvation window elapsed")
		}
		w.Check(now.Add(DefaultConfig().StarvationWindow))
		if rec.reason != StopTradeStarvation {
			t.Errorf("reason = %q, want %q", rec.reason, StopTradeStarvation)
		}
	})
}

func TestTripIsTerminal(t *testing.T) {
	snap := healthySnap()
	snap.LossStreak = 8
	kpi := &fakeKPI{snap: snap}
	w, sink, rec := testWatcher(kpi)

	now := time.Now()
	for i := 0; i < 5; i++ {
		w.Check(now.Add(time.Duration(i) * time.Second))
	}

	if rec.count != 1 {
		t.Errorf("stop callback fired %d times, want exactly 1", rec.count)
	}
	st := w.StateSnapshot()
	if !st.Tripped || st.StopReason != StopConsecutiveLoss {
		t.Errorf("state = %+v", st)
	}
	if _, ok := sink.writes["stop_reason_snapshot.json"]; !ok {
		t.Error("stop snapshot artifact not written")
	}

	// Heartbeats keep flowing after the trip as a liveness proof.
	if sink.lines["heartbeat.jsonl"] != 5 {
		t.Errorf("heartbeats = %d, want 5", sink.lines["heartbeat.jsonl"])
	}
	if st.Heartbeats != 5 {
		t.Errorf("heartbeat counter = %d, want 5", st.Heartbeats)
	}
}
