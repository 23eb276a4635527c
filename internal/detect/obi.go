package detect

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// OBIConfig configures the order-book-imbalance gate.
type OBIConfig struct {
	Enabled   bool
	TopLevels int
	Threshold decimal.Decimal
	// TopK keeps only the K highest-ranked surviving candidates per tick;
	// 0 disables the rank cut.
	TopK int
}

// OBIScore computes (bid_depth - ask_depth) / (bid_depth + ask_depth) over
// the top n levels of the entry venue's book. Returns false when the book
// has no depth to score.
func OBIScore(book domain.OrderbookSnapshot, n int) (decimal.Decimal, bool) {
	var bidDepth, askDepth float64
	for i, l := range book.Bids {
		if i >= n {
			break
		}
		bidDepth += l.Size
	}
	for i, l := range book.Asks {
		if i >= n {
			break
		}
		askDepth += l.Size
	}
	total := bidDepth + askDepth
	if total <= 0 {
		return decimal.Zero, false
	}
	score := decimal.NewFromFloat(bidDepth - askDepth).Div(decimal.NewFromFloat(total))
	return score, true
}

// PassesOBI checks the directional imbalance gate: buying on venue A wants
// bid-side pressure (score >= threshold), buying on venue B wants ask-side
// pressure (score <= -threshold). Candidates with no direction never pass.
func PassesOBI(c *domain.Candidate, score decimal.Decimal, threshold decimal.Decimal) bool {
	switch c.Direction {
	case domain.DirectionBuyASellB:
		return score.GreaterThanOrEqual(threshold)
	case domain.DirectionBuyBSellA:
		return score.LessThanOrEqual(threshold.Neg())
	default:
		return false
	}
}

// RankTopK annotates OBIRank on the given candidates (1 = strongest
// absolute imbalance) and returns the K best. When k <= 0 or the list is
// already within k, all candidates are returned ranked.
func RankTopK(cands []*domain.Candidate, k int) []*domain.Candidate {
	sorted := make([]*domain.Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		var si, sj decimal.Decimal
		if sorted[i].OBIScore != nil {
			si = sorted[i].OBIScore.Abs()
		}
		if sorted[j].OBIScore != nil {
			sj = sorted[j].OBIScore.Abs()
		}
		return si.GreaterThan(sj)
	})
	for i, c := range sorted {
		c.OBIRank = i + 1
	}
	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
