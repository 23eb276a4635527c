// Package execmodel estimates realistic execution cost: taker spread,
// depth-relative slippage, and partial-fill risk for the taker path, and a
// fill-probability model for the maker path. Everything is decimal because
// these figures feed fee and rebate accounting where float rounding
// compounds across thousands of ticks.
package execmodel

import (
	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// ModelVersion tags every breakdown so a change in the cost model is visible
// in recorded evidence.
const ModelVersion = "exec-cost-v1"

// CostConfig configures the linear taker execution-cost model.
type CostConfig struct {
	// SpreadCostBps assumes both legs cross the spread.
	SpreadCostBps decimal.Decimal
	// SlippageAlpha scales the notional-to-depth ratio into bps.
	SlippageAlpha decimal.Decimal
	// SlippageCapBps caps depth-derived slippage.
	SlippageCapBps decimal.Decimal
	// DefaultSlippageBps is the conservative penalty when no book depth is
	// available.
	DefaultSlippageBps decimal.Decimal
	// PartialFillPenaltyBps applies when notional/depth exceeds SafeSizeRatio.
	PartialFillPenaltyBps decimal.Decimal
	SafeSizeRatio         decimal.Decimal
}

// DefaultCostConfig mirrors the conservative production defaults.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		SpreadCostBps:         decimal.NewFromInt(10),
		SlippageAlpha:         decimal.NewFromInt(5),
		SlippageCapBps:        decimal.NewFromInt(100),
		DefaultSlippageBps:    decimal.NewFromInt(20),
		PartialFillPenaltyBps: decimal.NewFromInt(15),
		SafeSizeRatio:         decimal.NewFromFloat(0.5),
	}
}

// CostModel estimates execution cost for one candidate.
type CostModel struct {
	cfg CostConfig
}

// NewCostModel creates a CostModel.
func NewCostModel(cfg CostConfig) *CostModel {
	return &CostModel{cfg: cfg}
}

// Estimate computes the execution-cost breakdown for an order of the given
// notional against a book whose average top-of-book notional is
// avgTopNotional (0 means depth is unknown). Cost is monotonically
// non-decreasing in notional, all else equal.
func (m *CostModel) Estimate(rawEdgeBps, notional, avgTopNotional decimal.Decimal) domain.ExecutionCostBreakdown {
	slippage := m.cfg.DefaultSlippageBps
	partial := decimal.Zero

	if avgTopNotional.IsPositive() {
		ratio := notional.Div(avgTopNotional)
		slippage = m.cfg.SlippageAlpha.Mul(ratio)
		if slippage.GreaterThan(m.cfg.SlippageCapBps) {
			slippage = m.cfg.SlippageCapBps
		}
		if ratio.GreaterThan(m.cfg.SafeSizeRatio) {
			partial = m.cfg.PartialFillPenaltyBps
		}
	}

	total := m.cfg.SpreadCostBps.Add(slippage).Add(partial)
	return domain.ExecutionCostBreakdown{
		SpreadCostBps:       m.cfg.SpreadCostBps,
		SlippageCostBps:     slippage,
		PartialFillRiskBps:  partial,
		TotalExecCostBps:    total,
		NetEdgeAfterExecBps: rawEdgeBps.Sub(total),
		ModelVersion:        ModelVersion,
	}
}
