// Package watcher implements the safety governor: a background poller that
// inspects live KPI snapshots and trips a kill-switch when the run looks
// statistically implausible or economically unsafe.
package watcher

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/metrics"
)

func itoa(n int64) string   { return strconv.FormatInt(n, 10) }
func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 4, 64) }

// Terminal stop reasons, one per guard.
const (
	StopZeroWin         = "zero_win"
	StopNegativeEdge    = "sustained_negative_edge"
	StopMaxDrawdown     = "max_drawdown"
	StopConsecutiveLoss = "consecutive_losses"
	StopWinrateCap      = "winrate_cap"
	StopZeroFriction    = "zero_friction"
	StopTradeStarvation = "trade_starvation"
)

// KPISource supplies snapshot-consistent KPI reads. The watcher reads one
// snapshot per check and never interleaves field reads across commits.
type KPISource interface {
	Snapshot(now time.Time) metrics.Snapshot
}

// Sink receives the watcher's evidence artifacts.
type Sink interface {
	WriteJSON(name string, v any) error
	AppendLine(name string, v any) error
}

// Config holds the guard thresholds.
type Config struct {
	Interval time.Duration

	ZeroWinMinTrades     int64
	NegEdgeWindow        time.Duration
	MaxDrawdownPct       decimal.Decimal
	MaxConsecutiveLosses int64
	WinrateCap           float64
	WinrateCapMinTrades  int64
	StarvationMinOpps    int64
	StarvationWindow     time.Duration

	// ExpectedDuration is the planned run length, used by the watch summary
	// to compute the completeness ratio.
	ExpectedDuration time.Duration
}

// DefaultConfig returns production guard thresholds.
func DefaultConfig() Config {
	return Config{
		Interval:             5 * time.Second,
		ZeroWinMinTrades:     10,
		NegEdgeWindow:        120 * time.Second,
		MaxDrawdownPct:       decimal.NewFromFloat(0.5),
		MaxConsecutiveLosses: 8,
		WinrateCap:           0.95,
		WinrateCapMinTrades:  20,
		StarvationMinOpps:    50,
		StarvationWindow:     300 * time.Second,
	}
}

// State is the watcher-owned mutable state. Exposed read-only via Snapshot.
type State struct {
	PeakPnL         decimal.Decimal
	NegEdgeSince    *time.Time
	StarvationSince *time.Time
	Tripped         bool
	StopReason      string
	Diagnosis       string
	TrippedAt       *time.Time
	Heartbeats      int64
}

// Watcher polls the KPI on a fixed interval and evaluates every guard each
// heartbeat. A trip is terminal: the stop callback fires exactly once and
// later checks never re-invoke it.
type Watcher struct {
	cfg    Config
	kpi    KPISource
	sink   Sink
	stopFn func(reason, diagnosis string)
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	stopOnce sync.Once
	started  time.Time
}

// New creates a Watcher. stopFn is invoked at most once, on the first guard
// trip.
func New(cfg Config, kpi KPISource, sink Sink, stopFn func(reason, diagnosis string), logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:    cfg,
		kpi:    kpi,
		sink:   sink,
		stopFn: stopFn,
		logger: logger.With(slog.String("component", "run_watcher")),
		now:    time.Now,
	}
}

// Run polls until ctx is cancelled, then writes the watch summary.
func (w *Watcher) Run(ctx context.Context) error {
	w.started = w.now()
	w.logger.Info("run watcher started", slog.Duration("interval", w.cfg.Interval))
	defer w.logger.Info("run watcher stopped")

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.writeSummary()
			return ctx.Err()
		case <-ticker.C:
			w.Check(w.now())
		}
	}
}

// Check runs one heartbeat: take a snapshot, append the heartbeat line, and
// evaluate every guard. Safe to call directly from tests.
func (w *Watcher) Check(now time.Time) {
	snap := w.kpi.Snapshot(now)

	w.mu.Lock()
	w.state.Heartbeats++
	tripped := w.state.Tripped
	reason := w.state.StopReason
	w.mu.Unlock()

	// Heartbeat is appended every poll, independent of trip state. Its
	// density is externally verified as a liveness proof.
	hb := map[string]any{
		"ts":            now.UTC().Format(time.RFC3339Nano),
		"closed_trades": snap.ClosedTrades,
		"wins":          snap.Wins,
		"net_pnl":       snap.NetPnL,
		"winrate":       snap.Winrate,
		"reject_total":  snap.RejectTotal,
		"tripped":       tripped,
	}
	if reason != "" {
		hb["stop_reason"] = reason
	}
	if err := w.sink.AppendLine("heartbeat.jsonl", hb); err != nil {
		w.logger.Warn("heartbeat append failed", slog.String("error", err.Error()))
	}

	if tripped {
		return
	}

	if stop, diag := w.evaluate(snap, now); stop != "" {
		w.trip(stop, diag, snap, now)
	}
}

// evaluate checks every guard against one snapshot and returns the first
// tripped stop reason, or "".
func (w *Watcher) evaluate(snap metrics.Snapshot, now time.Time) (string, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Track peak PnL for the drawdown guard.
	if snap.NetPnL.GreaterThan(w.state.PeakPnL) {
		w.state.PeakPnL = snap.NetPnL
	}

	// Guard A: trades closing but literally nothing wins.
	if snap.ClosedTrades >= w.cfg.ZeroWinMinTrades && snap.Wins == 0 {
		return StopZeroWin, "closed " + itoa(snap.ClosedTrades) + " trades with zero wins"
	}

	// Guard B: average realized PnL per trade negative, continuously.
	if snap.ClosedTrades > 0 && snap.AvgPnLPerTrade().IsNegative() {
		if w.state.NegEdgeSince == nil {
			t := now
			w.state.NegEdgeSince = &t
		} else if now.Sub(*w.state.NegEdgeSince) >= w.cfg.NegEdgeWindow {
			return StopNegativeEdge, "avg pnl/trade negative for " + now.Sub(*w.state.NegEdgeSince).String()
		}
	} else {
		w.state.NegEdgeSince = nil
	}

	// Guard D: drawdown from peak.
	if w.state.PeakPnL.IsPositive() {
		drawdown := w.state.PeakPnL.Sub(snap.NetPnL).Div(w.state.PeakPnL)
		if drawdown.GreaterThanOrEqual(w.cfg.MaxDrawdownPct) {
			return StopMaxDrawdown, "drawdown " + drawdown.StringFixed(4) + " from peak " + w.state.PeakPnL.StringFixed(2)
		}
	}

	// Guard E: loss streak.
	if w.cfg.MaxConsecutiveLosses > 0 && snap.LossStreak >= w.cfg.MaxConsecutiveLosses {
		return StopConsecutiveLoss, itoa(snap.LossStreak) + " consecutive losses"
	}

	// Guard F: a winrate this high means the model is lying, not winning.
	if snap.ClosedTrades >= w.cfg.WinrateCapMinTrades && snap.Winrate >= w.cfg.WinrateCap {
		return StopWinrateCap, "winrate " + ftoa(snap.Winrate) + " over " + itoa(snap.ClosedTrades) + " trades is statistically implausible"
	}

	// Guard G: trades closed but no fees accrued means friction accounting
	// was bypassed.
	if snap.ClosedTrades > 0 && snap.FeesTotal.IsZero() {
		return StopZeroFriction, "fees_total is zero after " + itoa(snap.ClosedTrades) + " closed trades"
	}

	// Trade starvation: opportunities flow but nothing converts to intents.
	if snap.Opportunities >= w.cfg.StarvationMinOpps && snap.Intents == 0 {
		if w.state.StarvationSince == nil {
			t := now
			w.state.StarvationSince = &t
		} else if now.Sub(*w.state.StarvationSince) >= w.cfg.StarvationWindow {
			return StopTradeStarvation, itoa(snap.Opportunities) + " opportunities produced zero intents"
		}
	} else {
		w.state.StarvationSince = nil
	}

	return "", ""
}

// trip marks the terminal state, persists the snapshot artifact, and fires
// the stop callback exactly once.
func (w *Watcher) trip(reason, diagnosis string, snap metrics.Snapshot, now time.Time) {
	w.mu.Lock()
	w.state.Tripped = true
	w.state.StopReason = reason
	w.state.Diagnosis = diagnosis
	t := now
	w.state.TrippedAt = &t
	w.mu.Unlock()

	w.logger.Error("guard tripped",
		slog.String("stop_reason", reason),
		slog.String("diagnosis", diagnosis),
	)

	artifact := map[string]any{
		"stop_reason": reason,
		"diagnosis":   diagnosis,
		"tripped_at":  now.UTC().Format(time.RFC3339Nano),
		"kpi":         snap,
	}
	if err := w.sink.WriteJSON("stop_reason_snapshot.json", artifact); err != nil {
		w.logger.Warn("stop snapshot write failed", slog.String("error", err.Error()))
	}

	w.stopOnce.Do(func() {
		w.stopFn(reason, diagnosis)
	})
}

// StateSnapshot returns a copy of the watcher-owned state.
func (w *Watcher) StateSnapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// writeSummary emits watch_summary.json: wallclock vs expected duration,
// completeness ratio, and the terminal stop reason if any.
func (w *Watcher) writeSummary() {
	now := w.now()
	elapsed := now.Sub(w.started)

	w.mu.Lock()
	st := w.state
	w.mu.Unlock()

	completeness := 1.0
	if w.cfg.ExpectedDuration > 0 {
		completeness = float64(elapsed) / float64(w.cfg.ExpectedDuration)
		if completeness > 1 {
			completeness = 1
		}
	}

	summary := map[string]any{
		"started_at":         w.started.UTC().Format(time.RFC3339Nano),
		"finished_at":        now.UTC().Format(time.RFC3339Nano),
		"wallclock_seconds":  elapsed.Seconds(),
		"expected_seconds":   w.cfg.ExpectedDuration.Seconds(),
		"completeness_ratio": completeness,
		"heartbeats":         st.Heartbeats,
		"tripped":            st.Tripped,
		"stop_reason":        st.StopReason,
		"diagnosis":          st.Diagnosis,
	}
	if err := w.sink.WriteJSON("watch_summary.json", summary); err != nil {
		w.logger.Warn("watch summary write failed", slog.String("error", err.Error()))
	}
}
