package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction identifies which venue is bought and which is sold.
type Direction string

const (
	DirectionBuyASellB Direction = "buy_a_sell_b"
	DirectionBuyBSellA Direction = "buy_b_sell_a"
	DirectionNone      Direction = "none"
)

// ExecutionCostBreakdown is the linear execution-cost model output for one
// candidate. All terms are bps. Derived per candidate, never shared.
type ExecutionCostBreakdown struct {
	SpreadCostBps       decimal.Decimal
	SlippageCostBps     decimal.Decimal
	PartialFillRiskBps  decimal.Decimal
	TotalExecCostBps    decimal.Decimal
	NetEdgeAfterExecBps decimal.Decimal
	ModelVersion        string
}

// MakerEstimate is the maker-path fill model output for one candidate.
type MakerEstimate struct {
	FillProbability    decimal.Decimal
	OpportunityCostBps decimal.Decimal
	NetEdgeBps         decimal.Decimal
}

// Candidate is one detected cross-venue price discrepancy, created once per
// tick per symbol pair. Core detection fields are set at creation; the filter
// pipeline may add annotations (OBI score, exec-cost breakdown, maker
// estimate) but never rewrites the detection fields. Candidates are not
// persisted beyond the tick that produced them.
type Candidate struct {
	ID     string
	Symbol string
	VenueA string
	VenueB string

	// Normalized (settlement-currency) prices.
	PriceA decimal.Decimal
	PriceB decimal.Decimal

	SpreadBps             decimal.Decimal
	BreakEvenBps          decimal.Decimal
	EdgeBps               decimal.Decimal
	DeterministicDriftBps decimal.Decimal
	NetEdgeBps            decimal.Decimal

	Direction  Direction
	Profitable bool

	// Filter-pipeline annotations (optional).
	OBIScore *decimal.Decimal
	OBIRank  int
	ExecCost *ExecutionCostBreakdown
	Maker    *MakerEstimate

	// AllowUnprofitable lets controlled negative-edge experiments build
	// intents from a candidate that failed the profitability gate.
	AllowUnprofitable bool

	DetectedAt time.Time
}

// DecidedNetEdgeBps returns the single authoritative net edge: the
// exec-adjusted figure when a breakdown exists, the raw net edge otherwise.
// Profitability is always derived from this value and nowhere else.
func (c *Candidate) DecidedNetEdgeBps() decimal.Decimal {
	if c.ExecCost != nil {
		return c.ExecCost.NetEdgeAfterExecBps
	}
	return c.NetEdgeBps
}
