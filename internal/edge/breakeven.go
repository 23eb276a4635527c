// Package edge implements the break-even and edge arithmetic at the heart of
// the arbitrage decision pipeline. All math is fixed-point decimal so that
// repeated fee/rebate accounting reproduces bit-for-bit across runs.
package edge

import (
	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

var two = decimal.NewFromInt(2)

// BreakEvenBps computes the round-trip threshold a spread must clear before
// a trade is theoretically profitable:
//
//	break_even = entry_taker_fee + exit_taker_fee + 2*(slippage+latency) + buffer
//
// The execution-risk term is doubled because slippage and latency drift are
// paid on both legs. Pure and deterministic; no error conditions.
func BreakEvenBps(p domain.BreakEvenParams) decimal.Decimal {
	fees := p.Entry.TakerFeeBps.Add(p.Exit.TakerFeeBps)
	execRisk := p.SlippageBps.Add(p.LatencyBps).Mul(two)
	return fees.Add(execRisk).Add(p.BufferBps)
}

// EdgeBps is the raw edge before deterministic drift or execution-cost
// adjustment: spread minus break-even, exactly.
func EdgeBps(spreadBps, breakEvenBps decimal.Decimal) decimal.Decimal {
	return spreadBps.Sub(breakEvenBps)
}
