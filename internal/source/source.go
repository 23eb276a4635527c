// Package source produces opportunity candidates each tick. Two concrete
// sources implement the same interface: PairSource runs the real
// fetch/normalize/detect/filter pipeline over two venues, MockSource
// synthesizes candidates directly for offline and governor testing. The
// source is selected once at startup.
package source

import (
	"context"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// OpportunitySource generates the candidates for one tick. Recoverable
// failures (missing prices, stale FX, rate limits, filter drops) are counted
// as rejects internally and never surface as errors.
type OpportunitySource interface {
	Generate(ctx context.Context, iteration int) ([]*domain.Candidate, error)
}
