package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/minkyupark/arbpaper/internal/detect"
	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/edge"
	"github.com/minkyupark/arbpaper/internal/execmodel"
	"github.com/minkyupark/arbpaper/internal/metrics"
)

// PairConfig configures the live two-venue pipeline.
type PairConfig struct {
	Symbols []string

	FXTTL  time.Duration
	FXFrom string
	FXTo   string

	BookDepth int
	Notional  decimal.Decimal

	OBI detect.OBIConfig

	// Calibration enables the dynamic net-edge threshold after warm-up.
	Calibration      bool
	CalibratorConfig detect.CalibratorConfig

	// RatePerSecond and Burst shape each venue's token bucket.
	RatePerSecond float64
	Burst         int
}

// PairSource compares two venues' prices for each configured symbol and runs
// the full candidate filter pipeline: FX normalization, units guard,
// execution-cost adjustment, OBI gate, dynamic threshold, top-K rank cut.
type PairSource struct {
	cfg      PairConfig
	venueA   domain.MarketData
	venueB   domain.MarketData
	fxp      domain.FXProvider
	detector *detect.Detector
	costs    *execmodel.CostModel
	calib    *detect.Calibrator
	kpi      *metrics.PaperMetrics
	limiterA *rate.Limiter
	limiterB *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time
}

// NewPairSource creates a PairSource.
func NewPairSource(
	cfg PairConfig,
	venueA, venueB domain.MarketData,
	fxp domain.FXProvider,
	detector *detect.Detector,
	costs *execmodel.CostModel,
	kpi *metrics.PaperMetrics,
	logger *slog.Logger,
) *PairSource {
	s := &PairSource{
		cfg:      cfg,
		venueA:   venueA,
		venueB:   venueB,
		fxp:      fxp,
		detector: detector,
		costs:    costs,
		kpi:      kpi,
		limiterA: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		limiterB: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:   logger.With(slog.String("component", "pair_source")),
		now:      time.Now,
	}
	if cfg.Calibration {
		s.calib = detect.NewCalibrator(cfg.CalibratorConfig, s.now())
	}
	return s
}

// Generate runs one tick over all configured symbols and returns the
// surviving candidates, rank-cut to the configured top K.
func (s *PairSource) Generate(ctx context.Context, iteration int) ([]*domain.Candidate, error) {
	now := s.now()

	fxRate, fxAsOf, err := s.fxp.GetFXRate(ctx, s.cfg.FXFrom, s.cfg.FXTo)
	if err != nil {
		s.logger.Warn("fx fetch failed, skipping tick", slog.String("error", err.Error()))
		s.kpi.Reject(metrics.RejectFXStale)
		return nil, nil
	}
	if now.Sub(fxAsOf) > s.cfg.FXTTL {
		// Stale FX is a hard reject: a mispriced cross-currency spread is
		// worse than no trade at all.
		s.logger.Warn("fx rate stale, skipping tick",
			slog.Time("as_of", fxAsOf),
			slog.Duration("ttl", s.cfg.FXTTL),
		)
		s.kpi.Reject(metrics.RejectFXStale)
		return nil, nil
	}
	s.kpi.RecordFX(fxSource(s.fxp), fxRate, fxAsOf)

	var out []*domain.Candidate
	for _, symbol := range s.cfg.Symbols {
		c := s.generateSymbol(ctx, symbol, fxRate, now)
		if c != nil {
			out = append(out, c)
		}
	}

	if s.cfg.OBI.Enabled && s.cfg.OBI.TopK > 0 && len(out) > s.cfg.OBI.TopK {
		kept := detect.RankTopK(out, s.cfg.OBI.TopK)
		for range out[len(kept):] {
			s.kpi.Reject(metrics.RejectRankCut)
		}
		out = kept
	}
	return out, nil
}

// generateSymbol runs the per-symbol pipeline. A nil return means the symbol
// produced no accepted candidate this tick (already counted as a reject).
func (s *PairSource) generateSymbol(ctx context.Context, symbol string, fxRate decimal.Decimal, now time.Time) *domain.Candidate {
	if !s.limiterA.Allow() {
		s.kpi.Reject(metrics.RejectRatelimitA)
		return nil
	}
	if !s.limiterB.Allow() {
		s.kpi.Reject(metrics.RejectRatelimitB)
		return nil
	}

	// Two short-lived parallel fetches, one per venue.
	var tickA, tickB domain.Ticker
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.venueA.GetTicker(gctx, symbol)
		tickA = t
		return err
	})
	g.Go(func() error {
		t, err := s.venueB.GetTicker(gctx, symbol)
		tickB = t
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug("ticker fetch failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		s.kpi.Reject(metrics.RejectPriceMissing)
		return nil
	}
	if tickA.Last <= 0 || tickB.Last <= 0 {
		s.kpi.Reject(metrics.RejectPriceMissing)
		return nil
	}

	priceA, err := edge.NormalizeToKRW(decimal.NewFromFloat(tickA.Last), s.venueA.QuoteCurrency(), fxRate)
	if err != nil {
		s.kpi.Reject(metrics.RejectUnitsMismatch)
		return nil
	}
	priceB, err := edge.NormalizeToKRW(decimal.NewFromFloat(tickB.Last), s.venueB.QuoteCurrency(), fxRate)
	if err != nil {
		s.kpi.Reject(metrics.RejectUnitsMismatch)
		return nil
	}

	c := s.detector.Detect(symbol, priceA, priceB, now)
	if c == nil {
		s.kpi.Reject(metrics.RejectPriceMissing)
		return nil
	}
	s.kpi.IncOpportunities(1)

	// Sanity guard runs on every candidate before anything downstream.
	if edge.IsUnitsMismatch(c.SpreadBps, c.EdgeBps) {
		s.kpi.Reject(metrics.RejectUnitsMismatch)
		return nil
	}

	// Entry-venue book feeds both the OBI gate and the cost model.
	book := s.entryBook(ctx, c, symbol)

	if s.cfg.OBI.Enabled && book != nil {
		if score, ok := detect.OBIScore(*book, s.cfg.OBI.TopLevels); ok {
			c.OBIScore = &score
			if !detect.PassesOBI(c, score, s.cfg.OBI.Threshold) {
				s.kpi.Reject(metrics.RejectOBIThreshold)
				return nil
			}
		}
	}

	avgTopNotional := decimal.Zero
	if book != nil {
		mid := decimal.NewFromFloat((book.BestBid() + book.BestAsk()) / 2)
		avgTopNotional = decimal.NewFromFloat(book.AvgTopSize(s.cfg.BookDepth)).Mul(mid)
	}
	breakdown := s.costs.Estimate(c.EdgeBps, s.cfg.Notional, avgTopNotional)
	detect.ApplyExecCost(c, breakdown)

	if s.calib != nil {
		s.calib.Observe(c.DecidedNetEdgeBps())
		if s.calib.WarmedUp(now) {
			res := s.calib.Threshold()
			if c.DecidedNetEdgeBps().LessThan(res.ThresholdBps) {
				s.kpi.Reject(metrics.RejectEdgeThreshold)
				return nil
			}
		}
	}

	if !c.Profitable && !c.AllowUnprofitable {
		s.kpi.Reject(metrics.RejectNotProfitable)
		return nil
	}
	return c
}

// entryBook fetches the order book for the venue the candidate would buy
// on. Book fetch failures are tolerated: the cost model falls back to its
// conservative default penalty.
func (s *PairSource) entryBook(ctx context.Context, c *domain.Candidate, symbol string) *domain.OrderbookSnapshot {
	venue := s.venueA
	if c.Direction == domain.DirectionBuyBSellA {
		venue = s.venueB
	}
	book, err := venue.GetOrderbook(ctx, symbol, s.cfg.BookDepth)
	if err != nil {
		s.logger.Debug("orderbook fetch failed",
			slog.String("symbol", symbol),
			slog.String("venue", venue.Exchange()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &book
}

// Calibration returns the current calibration result, or ok=false when
// dynamic thresholds are disabled.
func (s *PairSource) Calibration() (detect.CalibrationResult, bool) {
	if s.calib == nil {
		return detect.CalibrationResult{}, false
	}
	return s.calib.Threshold(), true
}

func fxSource(p domain.FXProvider) string {
	if p.IsLive() {
		return "live"
	}
	return "fixed"
}
