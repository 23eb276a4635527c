package domain

import "github.com/shopspring/decimal"

// FeeStructure describes the fee schedule of one exchange. Fees are in basis
// points; a negative maker fee is a rebate. Loaded once at startup and never
// mutated afterwards.
type FeeStructure struct {
	Exchange    string
	MakerFeeBps decimal.Decimal
	TakerFeeBps decimal.Decimal
}

// BreakEvenParams bundles everything needed to compute the round-trip
// break-even threshold for one venue pair. Immutable for the duration of a
// run; a tuner may swap in a new set between runs.
type BreakEvenParams struct {
	Entry       FeeStructure
	Exit        FeeStructure
	SlippageBps decimal.Decimal
	LatencyBps  decimal.Decimal
	BufferBps   decimal.Decimal
}
