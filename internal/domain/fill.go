package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FillResult is the simulated execution outcome for one intent. One per
// intent, discarded after PnL welding.
type FillResult struct {
	IntentID            string
	Exchange            string
	Symbol              string
	Side                Side
	FilledQty           decimal.Decimal
	FilledPrice         decimal.Decimal
	// RefPrice is the unperturbed reference price the fill was simulated
	// against; the gap to FilledPrice is the slippage+drift friction.
	RefPrice            decimal.Decimal
	Fee                 decimal.Decimal
	SlippageBps         decimal.Decimal
	PessimisticDriftBps decimal.Decimal
	LatencyMs           int64
	PartialFillRatio    decimal.Decimal
	Rejected            bool
	RejectReason        string
	FilledAt            time.Time
}

// Notional returns the filled quote-currency value of the fill.
func (f FillResult) Notional() decimal.Decimal {
	return f.FilledPrice.Mul(f.FilledQty)
}

// TradeResult is the welded per-pair outcome: both legs plus the full
// friction breakdown and net PnL.
type TradeResult struct {
	CandidateID string
	Symbol      string
	Entry       FillResult
	Exit        FillResult

	GrossPnL           decimal.Decimal
	FeesTotal          decimal.Decimal
	SlippageCost       decimal.Decimal
	LatencyCost        decimal.Decimal
	PartialFillPenalty decimal.Decimal
	SpreadCost         decimal.Decimal
	NetPnLFull         decimal.Decimal

	CompletedAt time.Time
}
