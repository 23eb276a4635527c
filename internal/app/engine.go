package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/minkyupark/arbpaper/internal/config"
	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/execmodel"
	"github.com/minkyupark/arbpaper/internal/intent"
	"github.com/minkyupark/arbpaper/internal/metrics"
	"github.com/minkyupark/arbpaper/internal/sim"
	"github.com/minkyupark/arbpaper/internal/watcher"
)

// Engine runs the paper-trading decision loop: generate candidates, build
// intent pairs, simulate both legs, weld PnL, and commit KPIs, while the run
// watcher and the admin control state gate every tick.
type Engine struct {
	cfg    *config.Config
	deps   *Dependencies
	runID  string
	logger *slog.Logger

	watch *watcher.Watcher

	mu         sync.Mutex
	stopReason string
	stopDiag   string
	adminMode  domain.ControlMode
	startedAt  time.Time
}

// NewEngine creates an Engine over wired dependencies.
func NewEngine(cfg *config.Config, deps *Dependencies, runID string, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		runID:  runID,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// Run executes the decision loop alongside the run watcher (and the venue
// stream in live mode) until the context is cancelled, the iteration budget
// is exhausted, an admin command stops the run, or a guard trips. The
// evidence set is flushed before returning. A guard trip returns
// ErrGuardTripped, an operator stop ErrAdminStop, and a termination signal
// ErrInterrupted; only an exhausted iteration budget returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.watch = watcher.New(watcher.Config{
		Interval:             e.cfg.Watcher.Interval.Duration,
		ZeroWinMinTrades:     e.cfg.Watcher.ZeroWinTrades,
		NegEdgeWindow:        e.cfg.Watcher.NegEdgeWindow.Duration,
		MaxDrawdownPct:       decimal.NewFromFloat(e.cfg.Watcher.MaxDrawdown),
		MaxConsecutiveLosses: e.cfg.Watcher.MaxConsecutiveLosses,
		WinrateCap:           e.cfg.Watcher.WinrateCap,
		WinrateCapMinTrades:  e.cfg.Watcher.WinrateMinTrades,
		StarvationMinOpps:    e.cfg.Watcher.StarvationMinOpps,
		StarvationWindow:     e.cfg.Watcher.StarvationWindow.Duration,
	}, e.deps.KPI, e.deps.Evidence, func(reason, diagnosis string) {
		e.mu.Lock()
		e.stopReason = reason
		e.stopDiag = diagnosis
		e.mu.Unlock()
		cancel()
	}, e.logger)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := e.watch.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if e.deps.Binance != nil {
		g.Go(func() error {
			if err := e.deps.Binance.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return e.loop(gctx)
	})

	runErr := g.Wait()
	e.flush()

	e.mu.Lock()
	reason, diag, admin := e.stopReason, e.stopDiag, e.adminMode
	e.mu.Unlock()

	switch {
	case reason != "":
		return fmt.Errorf("%w: %s (%s)", ErrGuardTripped, reason, diag)
	case admin != "" && admin != domain.ModeRunning:
		return fmt.Errorf("%w: mode %s", ErrAdminStop, admin)
	case errors.Is(runErr, context.Canceled):
		// The parent context was cancelled from outside: a termination
		// signal. Evidence is already flushed; the caller must still exit
		// non-zero so an interrupted run never looks like a completed one.
		return ErrInterrupted
	case runErr != nil:
		return fmt.Errorf("engine: %w", runErr)
	default:
		return nil
	}
}

// loop is one goroutine: the tick-driven decision loop.
func (e *Engine) loop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Trade.TickInterval.Duration)
	defer ticker.Stop()

	iteration := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if e.cfg.Trade.MaxIterations > 0 && iteration >= e.cfg.Trade.MaxIterations {
			e.logger.Info("iteration budget exhausted", slog.Int("iterations", iteration))
			return nil
		}
		iteration++

		tickStart := time.Now()

		ctrl, err := e.deps.ControlStore.Get(ctx)
		if err != nil {
			e.logger.Warn("control state read failed, skipping tick", slog.String("error", err.Error()))
			continue
		}
		switch ctrl.Mode {
		case domain.ModePaused:
			continue
		case domain.ModeStopping, domain.ModePanic, domain.ModeEmergencyClose:
			e.mu.Lock()
			e.adminMode = ctrl.Mode
			e.mu.Unlock()
			e.logger.Info("admin stop observed", slog.String("mode", string(ctrl.Mode)))
			return nil
		}

		candidates, err := e.deps.Source.Generate(ctx, iteration)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			e.logger.Warn("candidate generation failed", slog.String("error", err.Error()))
			continue
		}

		for _, c := range candidates {
			if ctrl.Blacklist[c.Symbol] {
				e.deps.KPI.Reject(metrics.RejectBlacklisted)
				continue
			}
			e.annotateMaker(c)
			e.processCandidate(ctx, c)
		}

		e.deps.KPI.ObserveTickLatency(time.Since(tickStart))
	}
}

// annotateMaker attaches the maker-path estimate. It informs the decision
// trace only; the taker path remains the executed one.
func (e *Engine) annotateMaker(c *domain.Candidate) {
	entryVenue := c.VenueA
	if c.Direction == domain.DirectionBuyBSellA {
		entryVenue = c.VenueB
	}
	est := e.deps.Maker.EstimateNetEdge(
		c.SpreadBps,
		e.makerFeeFor(entryVenue),
		decimal.NewFromFloat(e.cfg.Detect.SlippageBps),
		decimal.NewFromFloat(e.cfg.Detect.LatencyBps),
		decimal.Zero, // book depth unknown at this point
		decimal.NewFromFloat(e.cfg.Trade.QuoteAmount),
		1,
		c.DeterministicDriftBps,
		decimal.NewFromFloat(e.cfg.Maker.WaitSeconds),
		decimal.NewFromFloat(e.cfg.Maker.SlipPerSecondBps),
	)
	c.Maker = &est
}

func (e *Engine) makerFeeFor(venue string) decimal.Decimal {
	switch venue {
	case e.cfg.VenueA.Name:
		return decimal.NewFromFloat(e.cfg.VenueA.MakerFeeBps)
	case e.cfg.VenueB.Name:
		return decimal.NewFromFloat(e.cfg.VenueB.MakerFeeBps)
	default:
		return decimal.Zero
	}
}

// processCandidate runs one candidate through intent build, two simulated
// legs, and PnL welding. Every failure is a counted reject; nothing here is
// fatal to the run.
func (e *Engine) processCandidate(ctx context.Context, c *domain.Candidate) {
	pair, err := e.deps.Builder.Build(c)
	if err != nil {
		e.logger.Warn("intent build failed",
			slog.String("candidate_id", c.ID),
			slog.String("error", err.Error()),
		)
		e.deps.KPI.Reject(metrics.RejectOther)
		return
	}
	if pair == nil {
		return
	}
	e.deps.KPI.IncIntents(2)

	entryRef, exitRef := c.PriceA, c.PriceB
	if c.Direction == domain.DirectionBuyBSellA {
		entryRef, exitRef = c.PriceB, c.PriceA
	}

	entryFill, err := e.deps.Executor.Execute(pair.Entry, entryRef)
	if err != nil {
		e.deps.KPI.Reject(metrics.RejectOther)
		return
	}
	e.deps.Ledger.RecordLeg(ctx, pair.Entry, entryFill)
	if entryFill.Rejected {
		e.deps.KPI.Reject(metrics.RejectSimReject)
		e.trace(c, nil, "entry_rejected")
		return
	}

	pair.SyncExitQty(entryFill.FilledQty)
	if err := intent.ValidateForExecution(pair); err != nil {
		e.deps.KPI.Reject(metrics.RejectOther)
		return
	}

	exitFill, err := e.deps.Executor.Execute(pair.Exit, exitRef)
	if err != nil {
		e.deps.KPI.Reject(metrics.RejectOther)
		return
	}
	e.deps.Ledger.RecordLeg(ctx, pair.Exit, exitFill)
	if exitFill.Rejected {
		e.deps.KPI.Reject(metrics.RejectSimReject)
		e.trace(c, nil, "exit_rejected")
		return
	}
	e.deps.KPI.IncExecutions(1)

	entryBook := e.book(ctx, pair.Entry.Exchange, c.Symbol)
	exitBook := e.book(ctx, pair.Exit.Exchange, c.Symbol)

	trade, err := sim.WeldPnL(e.deps.WeldCfg, c.ID, c.Symbol, entryFill, exitFill, entryBook, exitBook)
	if err != nil {
		if errors.Is(err, domain.ErrQtyMismatch) {
			e.deps.KPI.Reject(metrics.RejectQtyMismatch)
		} else {
			e.deps.KPI.Reject(metrics.RejectOther)
		}
		e.logger.Warn("pnl weld failed",
			slog.String("candidate_id", c.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	e.deps.KPI.RecordTrade(trade)
	e.deps.Ledger.RecordTrade(ctx, trade)
	e.trace(c, &trade, "traded")
}

// book fetches a welding-time order book, tolerating failures. Mock mode has
// no venue map and yields nil books.
func (e *Engine) book(ctx context.Context, venue, symbol string) *domain.OrderbookSnapshot {
	md, ok := e.deps.Venues[venue]
	if !ok {
		return nil
	}
	book, err := md.GetOrderbook(ctx, symbol, e.cfg.Trade.BookDepth)
	if err != nil {
		return nil
	}
	return &book
}

// trace appends one decision-trace line for a candidate that reached the
// execution stage.
func (e *Engine) trace(c *domain.Candidate, trade *domain.TradeResult, outcome string) {
	line := map[string]any{
		"ts":           time.Now().UTC().Format(time.RFC3339Nano),
		"candidate_id": c.ID,
		"symbol":       c.Symbol,
		"direction":    string(c.Direction),
		"spread_bps":   c.SpreadBps,
		"net_edge_bps": c.DecidedNetEdgeBps(),
		"outcome":      outcome,
	}
	if c.ExecCost != nil {
		line["exec_cost_bps"] = c.ExecCost.TotalExecCostBps
		line["exec_model"] = c.ExecCost.ModelVersion
	}
	if c.Maker != nil {
		line["maker_fill_prob"] = c.Maker.FillProbability
		line["maker_net_edge_bps"] = c.Maker.NetEdgeBps
	}
	if c.OBIScore != nil {
		line["obi_score"] = *c.OBIScore
		line["obi_rank"] = c.OBIRank
	}
	if trade != nil {
		line["net_pnl"] = trade.NetPnLFull
		line["gross_pnl"] = trade.GrossPnL
	}
	if err := e.deps.Evidence.AppendLine("decision_trace.jsonl", line); err != nil {
		e.logger.Warn("decision trace append failed", slog.String("error", err.Error()))
	}
}

// flush writes the terminal evidence set: final KPI snapshot, engine report,
// manifest, and the optional S3 archive. Runs on a fresh context because the
// run context is already cancelled by the time we get here.
func (e *Engine) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pre := e.deps.KPI.Snapshot(time.Now())
	e.deps.Ledger.VerifyIntegrity(ctx, pre.ClosedTrades)

	snap := e.deps.KPI.Snapshot(time.Now())
	if err := e.deps.Evidence.WriteJSON("kpi.json", snap); err != nil {
		e.logger.Error("kpi flush failed", slog.String("error", err.Error()))
	}

	// The decision trace summary: the funnel and gate breakdown behind the
	// per-candidate decision_trace.jsonl stream, plus tick latency
	// percentiles.
	traceSummary := map[string]any{
		"opportunities": snap.Opportunities,
		"intents":       snap.Intents,
		"executions":    snap.Executions,
		"closed_trades": snap.ClosedTrades,
		"reject_total":  snap.RejectTotal,
		"gates":         snap.RejectReasons,
		"tick_latency_ms": map[string]float64{
			"p50": snap.LatencyPercentileMs(0.50),
			"p95": snap.LatencyPercentileMs(0.95),
			"p99": snap.LatencyPercentileMs(0.99),
		},
	}
	if err := e.deps.Evidence.WriteJSON("decision_trace.json", traceSummary); err != nil {
		e.logger.Error("decision trace summary flush failed", slog.String("error", err.Error()))
	}

	e.mu.Lock()
	reason, diag, admin := e.stopReason, e.stopDiag, e.adminMode
	e.mu.Unlock()

	report := map[string]any{
		"run_id":             e.runID,
		"mode":               e.cfg.Mode,
		"config_fingerprint": e.deps.Fingerprint,
		"exec_cost_model":    execmodel.ModelVersion,
		"started_at":         e.startedAt.UTC().Format(time.RFC3339Nano),
		"ended_at":           time.Now().UTC().Format(time.RFC3339Nano),
		"closed_trades":      snap.ClosedTrades,
		"net_pnl":            snap.NetPnL,
		"winrate":            snap.Winrate,
		"db_integrity_ok":    snap.DBIntegrityOK,
	}
	if reason != "" {
		report["stop_reason"] = reason
		report["stop_diagnosis"] = diag
	}
	if admin != "" {
		report["admin_mode"] = string(admin)
	}
	if e.watch != nil {
		report["watcher"] = e.watch.StateSnapshot()
	}
	if e.deps.PairSrc != nil {
		if res, ok := e.deps.PairSrc.Calibration(); ok {
			report["calibration"] = res
		}
	}
	if err := e.deps.Evidence.WriteJSON("engine_report.json", report); err != nil {
		e.logger.Error("engine report flush failed", slog.String("error", err.Error()))
	}

	if err := e.deps.Evidence.WriteManifest(); err != nil {
		e.logger.Error("manifest write failed", slog.String("error", err.Error()))
	}

	if e.deps.Uploader != nil {
		if err := e.deps.Uploader.UploadRun(ctx, e.runID, e.deps.Evidence.Path()); err != nil {
			e.logger.Error("evidence upload failed", slog.String("error", err.Error()))
		}
	}
}
