package detect

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CalibratorConfig configures dynamic threshold calibration.
type CalibratorConfig struct {
	Warmup      time.Duration
	Percentile  float64 // requested quantile of observed net-edge samples
	MinEdgeBps  decimal.Decimal
	MinPassRate float64 // minimum expected fraction of samples passing
	MinSamples  int
}

// CalibrationResult is the calibrated entry threshold plus fallback
// provenance for observability.
type CalibrationResult struct {
	ThresholdBps decimal.Decimal
	FallbackUsed bool
	Reason       string
	SampleCount  int
}

// Calibrator accumulates net-edge samples during a warm-up window and then
// derives the entry threshold from their distribution. The zero-pass guard
// ensures a calibrated threshold always admits at least one historical
// sample.
type Calibrator struct {
	cfg     CalibratorConfig
	mu      sync.Mutex
	started time.Time
	samples []decimal.Decimal
}

// NewCalibrator creates a Calibrator whose warm-up window starts at now.
func NewCalibrator(cfg CalibratorConfig, now time.Time) *Calibrator {
	return &Calibrator{cfg: cfg, started: now}
}

// Observe records one net-edge sample.
func (c *Calibrator) Observe(netEdgeBps decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, netEdgeBps)
}

// WarmedUp reports whether the warm-up window has elapsed.
func (c *Calibrator) WarmedUp(now time.Time) bool {
	return now.Sub(c.started) >= c.cfg.Warmup
}

// Threshold derives the current entry threshold. Before enough samples have
// accumulated it falls back to the minimum observed sample (or the floor
// when no samples exist at all) so the threshold is never unreachable.
func (c *Calibrator) Threshold() CalibrationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.samples)
	if n == 0 {
		return CalibrationResult{
			ThresholdBps: c.cfg.MinEdgeBps,
			FallbackUsed: true,
			Reason:       "no_samples",
		}
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, c.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	if n < c.cfg.MinSamples {
		return CalibrationResult{
			ThresholdBps: sorted[0],
			FallbackUsed: true,
			Reason:       "insufficient_samples",
			SampleCount:  n,
		}
	}

	threshold := quantile(sorted, c.cfg.Percentile)
	if threshold.LessThan(c.cfg.MinEdgeBps) {
		threshold = c.cfg.MinEdgeBps
	}

	if passRate(sorted, threshold) >= c.cfg.MinPassRate {
		return CalibrationResult{ThresholdBps: threshold, SampleCount: n}
	}

	// Expected pass rate too low: loosen to the (1 - min_pass_rate) quantile.
	threshold = quantile(sorted, 1-c.cfg.MinPassRate)
	if passRate(sorted, threshold) > 0 {
		return CalibrationResult{
			ThresholdBps: threshold,
			FallbackUsed: true,
			Reason:       "min_pass_rate_quantile",
			SampleCount:  n,
		}
	}

	// Zero-pass guard: admit at least the best historical sample.
	return CalibrationResult{
		ThresholdBps: sorted[0],
		FallbackUsed: true,
		Reason:       "zero_pass_guard",
		SampleCount:  n,
	}
}

// quantile returns the q-th quantile of an ascending-sorted sample set using
// nearest-rank interpolation.
func quantile(sorted []decimal.Decimal, q float64) decimal.Decimal {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func passRate(sorted []decimal.Decimal, threshold decimal.Decimal) float64 {
	var pass int
	for _, s := range sorted {
		if s.GreaterThanOrEqual(threshold) {
			pass++
		}
	}
	return float64(pass) / float64(len(sorted))
}
