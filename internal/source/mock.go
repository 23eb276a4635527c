package source

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/detect"
	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/execmodel"
	"github.com/minkyupark/arbpaper/internal/metrics"
)

// MockConfig configures the synthetic candidate source.
type MockConfig struct {
	Symbols []string
	// BasePrice is the reference settlement-currency price per symbol.
	BasePrice map[string]float64
	// ProfitableFraction is the target fraction of ticks whose synthetic
	// spread clears break-even plus drift.
	ProfitableFraction float64
	// MaxSpreadBps bounds the synthetic spread magnitude.
	MaxSpreadBps float64
	Notional     decimal.Decimal
	Seed         int64
}

// MockSource synthesizes candidates from a seeded RNG instead of live feeds.
// It drives the same detector and cost model as PairSource so a mock run
// exercises the full decision path deterministically.
type MockSource struct {
	cfg      MockConfig
	detector *detect.Detector
	costs    *execmodel.CostModel
	kpi      *metrics.PaperMetrics
	rng      *rand.Rand
	logger   *slog.Logger
	now      func() time.Time
}

// NewMockSource creates a MockSource.
func NewMockSource(cfg MockConfig, detector *detect.Detector, costs *execmodel.CostModel, kpi *metrics.PaperMetrics, logger *slog.Logger) *MockSource {
	return &MockSource{
		cfg:      cfg,
		detector: detector,
		costs:    costs,
		kpi:      kpi,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		logger:   logger.With(slog.String("component", "mock_source")),
		now:      time.Now,
	}
}

// Generate synthesizes one candidate per configured symbol. The iteration
// parameter keeps the price walk deterministic across restarts with the same
// seed and tick count.
func (s *MockSource) Generate(ctx context.Context, iteration int) ([]*domain.Candidate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := s.now()
	var out []*domain.Candidate
	for _, symbol := range s.cfg.Symbols {
		base := s.cfg.BasePrice[symbol]
		if base <= 0 {
			s.kpi.Reject(metrics.RejectPriceMissing)
			continue
		}

		spreadBps := s.rng.Float64() * s.cfg.MaxSpreadBps
		if s.rng.Float64() > s.cfg.ProfitableFraction {
			// Thin spread: stays below break-even most of the time.
			spreadBps = s.rng.Float64() * 10
		}
		if s.rng.Intn(2) == 0 {
			spreadBps = -spreadBps
		}

		priceA := decimal.NewFromFloat(base)
		priceB := priceA.Mul(decimal.NewFromFloat(1 + spreadBps/10000))

		c := s.detector.Detect(symbol, priceA, priceB, now)
		if c == nil {
			s.kpi.Reject(metrics.RejectPriceMissing)
			continue
		}
		s.kpi.IncOpportunities(1)

		// Synthetic depth: pretend the book comfortably absorbs twice the
		// configured notional.
		avgTopNotional := s.cfg.Notional.Mul(decimal.NewFromInt(2))
		breakdown := s.costs.Estimate(c.EdgeBps, s.cfg.Notional, avgTopNotional)
		detect.ApplyExecCost(c, breakdown)

		if !c.Profitable && !c.AllowUnprofitable {
			s.kpi.Reject(metrics.RejectNotProfitable)
			continue
		}
		out = append(out, c)
	}

	s.logger.Debug("mock tick generated",
		slog.Int("iteration", iteration),
		slog.Int("candidates", len(out)),
	)
	return out, nil
}
