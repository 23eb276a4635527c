package edge

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// SettlementCurrency is the common currency every quote is normalized into
// before two venues are compared.
const SettlementCurrency = "KRW"

// supportedQuotes are the quote currencies the normalizer knows how to
// convert. Anything else is a configuration bug, not a market condition.
var supportedQuotes = map[string]bool{
	"KRW":  true,
	"USD":  true,
	"USDT": true,
	"USDC": true,
}

// UnitsMismatchThresholdBps guards against prices that were never converted
// to the settlement currency: a genuine spread or edge of 10x (100000 bps)
// between two liquid venues does not happen, a missed KRW conversion does.
var UnitsMismatchThresholdBps = decimal.NewFromInt(100000)

// NormalizeToKRW converts a quote-currency price to KRW. Identity for KRW;
// stablecoin and USD quotes are multiplied by the USD/KRW rate. Unknown
// quote codes fail with domain.ErrUnsupportedCurrency.
func NormalizeToKRW(price decimal.Decimal, quoteCurrency string, fxRate decimal.Decimal) (decimal.Decimal, error) {
	q := strings.ToUpper(strings.TrimSpace(quoteCurrency))
	if !supportedQuotes[q] {
		return decimal.Zero, fmt.Errorf("edge: normalize %q: %w", quoteCurrency, domain.ErrUnsupportedCurrency)
	}
	if q == SettlementCurrency {
		return price, nil
	}
	return price.Mul(fxRate), nil
}

// IsUnitsMismatch returns true when either the spread or the edge magnitude
// exceeds the sanity threshold, signalling a normalization bug. Must run on
// every candidate before it is accepted downstream.
func IsUnitsMismatch(spreadBps, edgeBps decimal.Decimal) bool {
	return spreadBps.Abs().GreaterThan(UnitsMismatchThresholdBps) ||
		edgeBps.Abs().GreaterThan(UnitsMismatchThresholdBps)
}
