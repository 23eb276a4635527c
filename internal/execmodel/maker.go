package execmodel

import (
	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// MakerConfig configures the maker-path fill-probability model.
type MakerConfig struct {
	BaseFillProb       decimal.Decimal // conservative starting probability
	QueuePenaltyPerPos decimal.Decimal // per queue position ahead of us
	QueuePenaltyCap    decimal.Decimal
	SizeRatioThreshold decimal.Decimal // order/depth ratio above which size penalty applies
	SizePenalty        decimal.Decimal
	VolThresholdBps    decimal.Decimal // volatility above this incurs the vol penalty
	VolPenaltyPerBps   decimal.Decimal
	VolPenaltyCap      decimal.Decimal
	MinFillProb        decimal.Decimal
	MaxFillProb        decimal.Decimal
}

// DefaultMakerConfig returns the production defaults for the maker model.
func DefaultMakerConfig() MakerConfig {
	return MakerConfig{
		BaseFillProb:       decimal.NewFromFloat(0.7),
		QueuePenaltyPerPos: decimal.NewFromFloat(0.02),
		QueuePenaltyCap:    decimal.NewFromFloat(0.2),
		SizeRatioThreshold: decimal.NewFromFloat(0.2),
		SizePenalty:        decimal.NewFromFloat(0.15),
		VolThresholdBps:    decimal.NewFromInt(10),
		VolPenaltyPerBps:   decimal.NewFromFloat(0.01),
		VolPenaltyCap:      decimal.NewFromFloat(0.15),
		MinFillProb:        decimal.NewFromFloat(0.3),
		MaxFillProb:        decimal.NewFromFloat(0.95),
	}
}

// MakerModel estimates maker fill probability and the net edge of resting on
// the book instead of crossing the spread.
type MakerModel struct {
	cfg MakerConfig
}

// NewMakerModel creates a MakerModel.
func NewMakerModel(cfg MakerConfig) *MakerModel {
	return &MakerModel{cfg: cfg}
}

// EstimateFillProbability starts at the conservative base and subtracts
// capped penalties for queue position, order size relative to book depth,
// and volatility, clamping the result to the configured bounds.
func (m *MakerModel) EstimateFillProbability(depth, orderSize decimal.Decimal, queuePosition int, volatilityBps decimal.Decimal) decimal.Decimal {
	p := m.cfg.BaseFillProb

	queuePenalty := m.cfg.QueuePenaltyPerPos.Mul(decimal.NewFromInt(int64(queuePosition)))
	if queuePenalty.GreaterThan(m.cfg.QueuePenaltyCap) {
		queuePenalty = m.cfg.QueuePenaltyCap
	}
	p = p.Sub(queuePenalty)

	if depth.IsPositive() && orderSize.Div(depth).GreaterThan(m.cfg.SizeRatioThreshold) {
		p = p.Sub(m.cfg.SizePenalty)
	}

	if volatilityBps.GreaterThan(m.cfg.VolThresholdBps) {
		volPenalty := volatilityBps.Sub(m.cfg.VolThresholdBps).Mul(m.cfg.VolPenaltyPerBps)
		if volPenalty.GreaterThan(m.cfg.VolPenaltyCap) {
			volPenalty = m.cfg.VolPenaltyCap
		}
		p = p.Sub(volPenalty)
	}

	if p.LessThan(m.cfg.MinFillProb) {
		p = m.cfg.MinFillProb
	}
	if p.GreaterThan(m.cfg.MaxFillProb) {
		p = m.cfg.MaxFillProb
	}
	return p
}

// OpportunityCostBps is the expected cost of resting unfilled:
// (1 - fill_prob) * wait_seconds * slippage_per_second.
func OpportunityCostBps(fillProb, waitSeconds, slippagePerSecondBps decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(fillProb).Mul(waitSeconds).Mul(slippagePerSecondBps)
}

// EstimateNetEdge runs the full maker-path estimate for one candidate:
// spread minus maker fee, slippage, latency, and the non-fill opportunity
// cost.
func (m *MakerModel) EstimateNetEdge(
	spreadBps, makerFeeBps, slippageBps, latencyBps decimal.Decimal,
	depth, orderSize decimal.Decimal,
	queuePosition int,
	volatilityBps, waitSeconds, slippagePerSecondBps decimal.Decimal,
) domain.MakerEstimate {
	p := m.EstimateFillProbability(depth, orderSize, queuePosition, volatilityBps)
	oppCost := OpportunityCostBps(p, waitSeconds, slippagePerSecondBps)
	net := spreadBps.Sub(makerFeeBps).Sub(slippageBps).Sub(latencyBps).Sub(oppCost)
	return domain.MakerEstimate{
		FillProbability:    p,
		OpportunityCostBps: oppCost,
		NetEdgeBps:         net,
	}
}
