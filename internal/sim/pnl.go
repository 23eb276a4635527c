package sim

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// MaxLegQtyMismatch is the tolerated relative difference between entry and
// exit filled quantities. Arbitrage PnL is not meaningful across mismatched
// leg sizes, so anything beyond this fails fast instead of averaging.
var MaxLegQtyMismatch = decimal.NewFromFloat(0.01)

// WeldConfig configures PnL welding.
type WeldConfig struct {
	// PartialFillPenaltyBps prices the risk carried by the unfilled portion
	// of a leg.
	PartialFillPenaltyBps decimal.Decimal
}

// WeldPnL combines an entry and exit fill into a TradeResult with the five
// friction components accounted: fees, slippage cost, latency (drift) cost,
// partial-fill penalty, and spread cost. Gross PnL is taken at reference
// prices; slippage and drift appear as explicit frictions so
//
//	net_pnl_full = gross - fees - slippage - latency - partial - spread
//
// equals the PnL at executed prices minus fees and penalties.
// Books are optional: spread cost is zero for a leg without book data.
func WeldPnL(cfg WeldConfig, candidateID, symbol string, entry, exit domain.FillResult, entryBook, exitBook *domain.OrderbookSnapshot) (domain.TradeResult, error) {
	if entry.Rejected || exit.Rejected {
		return domain.TradeResult{}, fmt.Errorf("sim: weld %s: rejected leg cannot be welded", candidateID)
	}
	if !entry.FilledQty.IsPositive() || !exit.FilledQty.IsPositive() {
		return domain.TradeResult{}, fmt.Errorf("sim: weld %s: zero filled quantity", candidateID)
	}

	diff := entry.FilledQty.Sub(exit.FilledQty).Abs().Div(entry.FilledQty)
	if diff.GreaterThan(MaxLegQtyMismatch) {
		return domain.TradeResult{}, fmt.Errorf("sim: weld %s: entry qty %s vs exit qty %s: %w",
			candidateID, entry.FilledQty.StringFixed(8), exit.FilledQty.StringFixed(8), domain.ErrQtyMismatch)
	}

	qty := entry.FilledQty
	gross := exit.RefPrice.Sub(entry.RefPrice).Mul(qty)

	fees := entry.Fee.Add(exit.Fee)
	slippageCost := legFriction(entry, entry.SlippageBps, qty).Add(legFriction(exit, exit.SlippageBps, qty))
	latencyCost := legFriction(entry, entry.PessimisticDriftBps, qty).Add(legFriction(exit, exit.PessimisticDriftBps, qty))

	partialPenalty := decimal.Zero
	for _, leg := range []domain.FillResult{entry, exit} {
		unfilled := decimal.NewFromInt(1).Sub(leg.PartialFillRatio)
		if unfilled.IsPositive() {
			notional := leg.RefPrice.Mul(qty)
			partialPenalty = partialPenalty.Add(cfg.PartialFillPenaltyBps.Div(bps).Mul(notional).Mul(unfilled))
		}
	}

	spreadCost := legSpreadCost(entry, entryBook, qty).Add(legSpreadCost(exit, exitBook, qty))

	net := gross.Sub(fees).Sub(slippageCost).Sub(latencyCost).Sub(partialPenalty).Sub(spreadCost)

	return domain.TradeResult{
		CandidateID:        candidateID,
		Symbol:             symbol,
		Entry:              entry,
		Exit:               exit,
		GrossPnL:           gross,
		FeesTotal:          fees,
		SlippageCost:       slippageCost,
		LatencyCost:        latencyCost,
		PartialFillPenalty: partialPenalty,
		SpreadCost:         spreadCost,
		NetPnLFull:         net,
		CompletedAt:        time.Now().UTC(),
	}, nil
}

// legFriction converts a bps figure on one leg into price units against
// that leg's reference notional.
func legFriction(leg domain.FillResult, rateBps, qty decimal.Decimal) decimal.Decimal {
	return rateBps.Div(bps).Mul(leg.RefPrice.Mul(qty))
}

// legSpreadCost is the distance from the book midpoint to the executed side,
// in price units. Zero when no book data exists for the leg.
func legSpreadCost(leg domain.FillResult, book *domain.OrderbookSnapshot, qty decimal.Decimal) decimal.Decimal {
	if book == nil {
		return decimal.Zero
	}
	bid, ask := book.BestBid(), book.BestAsk()
	if bid <= 0 || ask <= 0 {
		return decimal.Zero
	}
	mid := decimal.NewFromFloat((bid + ask) / 2)
	var side decimal.Decimal
	if leg.Side == domain.SideBuy {
		side = decimal.NewFromFloat(ask)
	} else {
		side = decimal.NewFromFloat(bid)
	}
	return side.Sub(mid).Abs().Mul(qty)
}
