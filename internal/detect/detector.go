// Package detect turns two normalized venue prices into opportunity
// candidates and applies the secondary filter pipeline (units guard, OBI,
// dynamic threshold, top-K rank cut).
package detect

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/edge"
)

var bpsScale = decimal.NewFromInt(10000)

// DetectorConfig configures candidate detection for one venue pair.
type DetectorConfig struct {
	VenueA    string
	VenueB    string
	BreakEven domain.BreakEvenParams
	// DriftBps is the deterministic price-drift haircut applied to every
	// candidate's net edge.
	DriftBps decimal.Decimal
}

// Detector builds candidates from normalized price pairs.
type Detector struct {
	cfg    DetectorConfig
	logger *slog.Logger
}

// NewDetector creates a Detector for the configured venue pair.
func NewDetector(cfg DetectorConfig, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "detector")),
	}
}

// Detect compares two normalized prices for the same symbol and returns a
// candidate, or nil when either price is non-positive. Profitability here is
// provisional: it is re-decided once, after the execution-cost model runs,
// via ApplyExecCost.
func (d *Detector) Detect(symbol string, priceA, priceB decimal.Decimal, now time.Time) *domain.Candidate {
	if !priceA.IsPositive() || !priceB.IsPositive() {
		return nil
	}

	spreadBps := priceA.Sub(priceB).Div(priceB).Mul(bpsScale).Abs()
	breakEvenBps := edge.BreakEvenBps(d.cfg.BreakEven)
	edgeBps := edge.EdgeBps(spreadBps, breakEvenBps)
	netEdgeBps := edgeBps.Sub(d.cfg.DriftBps)

	direction := domain.DirectionNone
	switch priceA.Cmp(priceB) {
	case -1:
		direction = domain.DirectionBuyASellB
	case 1:
		direction = domain.DirectionBuyBSellA
	}

	c := &domain.Candidate{
		ID:                    uuid.New().String(),
		Symbol:                symbol,
		VenueA:                d.cfg.VenueA,
		VenueB:                d.cfg.VenueB,
		PriceA:                priceA,
		PriceB:                priceB,
		SpreadBps:             spreadBps,
		BreakEvenBps:          breakEvenBps,
		EdgeBps:               edgeBps,
		DeterministicDriftBps: d.cfg.DriftBps,
		NetEdgeBps:            netEdgeBps,
		Direction:             direction,
		Profitable:            netEdgeBps.IsPositive(),
		DetectedAt:            now,
	}

	d.logger.Debug("candidate detected",
		slog.String("symbol", symbol),
		slog.String("direction", string(direction)),
		slog.String("spread_bps", spreadBps.StringFixed(4)),
		slog.String("net_edge_bps", netEdgeBps.StringFixed(4)),
	)
	return c
}

// ApplyExecCost attaches an execution-cost breakdown to the candidate and
// re-decides profitability from the exec-adjusted net edge. This is the
// single point where a raw-edge-positive candidate can flip to unprofitable;
// no caller may re-derive profitability from the raw edge afterwards.
func ApplyExecCost(c *domain.Candidate, breakdown domain.ExecutionCostBreakdown) {
	c.ExecCost = &breakdown
	c.Profitable = breakdown.NetEdgeAfterExecBps.IsPositive()
}
