// Package sim simulates order execution against reference prices and welds
// per-leg fills into a fully friction-accounted trade PnL.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// FillConfig configures the simulated executor. All stochastic events are
// driven by a single seeded RNG so a run is reproducible bit-for-bit.
type FillConfig struct {
	SlippageBps decimal.Decimal
	LatencyBps  decimal.Decimal
	// LatencyMsBase is the simulated wall-clock latency per order; tracked
	// for observability only, decoupled from the LatencyBps price drift.
	LatencyMsBase   int64
	LatencyMsJitter int64

	PartialFillProb     float64
	PartialFillMinRatio float64
	AdverseProb         float64
	AdverseExtraBps     decimal.Decimal
	RejectProb          float64

	Seed int64
}

// Executor simulates fills for order intents.
type Executor struct {
	cfg    FillConfig
	fees   map[string]domain.FeeStructure // by exchange
	rng    *rand.Rand
	logger *slog.Logger
}

// NewExecutor creates a simulated executor with a deterministic RNG. The fee
// map supplies the taker fee charged on each venue's fills.
func NewExecutor(cfg FillConfig, fees map[string]domain.FeeStructure, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		fees:   fees,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger.With(slog.String("component", "sim_executor")),
	}
}

var bps = decimal.NewFromInt(10000)

// Execute simulates one intent against the given reference price. The price
// is perturbed unfavorably for the order side (buys fill higher, sells
// lower) by slippage plus latency drift, and partial fills, adverse
// slippage, and rejects are injected under the configured probabilities.
func (e *Executor) Execute(it domain.OrderIntent, refPrice decimal.Decimal) (domain.FillResult, error) {
	if !refPrice.IsPositive() {
		return domain.FillResult{}, fmt.Errorf("sim: execute %s: non-positive reference price", it.ID)
	}

	res := domain.FillResult{
		IntentID: it.ID,
		Exchange: it.Exchange,
		Symbol:   it.Symbol,
		Side:     it.Side,
		RefPrice: refPrice,
		FilledAt: time.Now().UTC(),
	}

	if e.cfg.RejectProb > 0 && e.rng.Float64() < e.cfg.RejectProb {
		res.Rejected = true
		res.RejectReason = "sim_reject"
		return res, nil
	}

	slippage := e.cfg.SlippageBps
	if e.cfg.AdverseProb > 0 && e.rng.Float64() < e.cfg.AdverseProb {
		slippage = slippage.Add(e.cfg.AdverseExtraBps)
	}
	drift := e.cfg.LatencyBps

	perturb := slippage.Add(drift).Div(bps)
	var filledPrice decimal.Decimal
	if it.Side == domain.SideBuy {
		filledPrice = refPrice.Mul(decimal.NewFromInt(1).Add(perturb))
	} else {
		filledPrice = refPrice.Mul(decimal.NewFromInt(1).Sub(perturb))
	}

	ratio := decimal.NewFromInt(1)
	if e.cfg.PartialFillProb > 0 && e.rng.Float64() < e.cfg.PartialFillProb {
		span := 1 - e.cfg.PartialFillMinRatio
		ratio = decimal.NewFromFloat(e.cfg.PartialFillMinRatio + e.rng.Float64()*span)
	}

	var qty decimal.Decimal
	switch {
	case it.Side == domain.SideBuy && it.QuoteAmount.IsPositive():
		qty = it.QuoteAmount.Div(filledPrice).Mul(ratio)
	case it.Side == domain.SideSell && it.BaseQty.IsPositive():
		qty = it.BaseQty.Mul(ratio)
	default:
		return domain.FillResult{}, fmt.Errorf("sim: execute %s: intent has no size for side %s", it.ID, it.Side)
	}

	latencyMs := e.cfg.LatencyMsBase
	if e.cfg.LatencyMsJitter > 0 {
		latencyMs += e.rng.Int63n(e.cfg.LatencyMsJitter)
	}

	res.FilledQty = qty
	res.FilledPrice = filledPrice
	res.SlippageBps = slippage
	res.PessimisticDriftBps = drift
	res.LatencyMs = latencyMs
	res.PartialFillRatio = ratio
	if fs, ok := e.fees[it.Exchange]; ok {
		res.Fee = fs.TakerFeeBps.Div(bps).Mul(filledPrice.Mul(qty))
	}

	e.logger.Debug("simulated fill",
		slog.String("intent_id", it.ID),
		slog.String("side", string(it.Side)),
		slog.String("filled_price", filledPrice.StringFixed(4)),
		slog.String("fill_ratio", ratio.StringFixed(4)),
	)
	return res, nil
}
