package execmodel

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestEstimateFillProbability(t *testing.T) {
	m := NewMakerModel(DefaultMakerConfig())

	t.Run("base_case", func(t *testing.T) {
		// Queue position 1 costs 0.02 off the 0.7 base.
		p := m.EstimateFillProbability(dec(100), dec(1), 1, decimal.Zero)
		if !p.Equal(dec(0.68)) {
			t.Errorf("p = %s, want 0.68", p)
		}
	})

	t.Run("queue_penalty_capped", func(t *testing.T) {
		deep := m.EstimateFillProbability(dec(100), dec(1), 1000, decimal.Zero)
		// 0.7 - cap 0.2 = 0.5
		if !deep.Equal(dec(0.5)) {
			t.Errorf("p = %s, want 0.5 at queue cap", deep)
		}
	})

	t.Run("size_penalty", func(t *testing.T) {
		// order/depth 0.3 > 0.2 threshold: 0.7 - 0.15 = 0.55
		p := m.EstimateFillProbability(dec(100), dec(30), 0, decimal.Zero)
		if !p.Equal(dec(0.55)) {
			t.Errorf("p = %s, want 0.55", p)
		}
	})

	t.Run("vol_penalty_capped", func(t *testing.T) {
		// vol 100 bps over the 10 bps threshold: raw penalty 0.9, cap 0.15.
		p := m.EstimateFillProbability(dec(100), dec(1), 0, dec(110))
		if !p.Equal(dec(0.55)) {
			t.Errorf("p = %s, want 0.55", p)
		}
	})

	t.Run("clamped_to_min", func(t *testing.T) {
		p := m.EstimateFillProbability(dec(100), dec(90), 1000, dec(500))
		if !p.Equal(dec(0.3)) {
			t.Errorf("p = %s, want floor 0.3", p)
		}
	})

	t.Run("never_exceeds_max", func(t *testing.T) {
		cfg := DefaultMakerConfig()
		cfg.BaseFillProb = dec(1.5)
		p := NewMakerModel(cfg).EstimateFillProbability(dec(100), dec(1), 0, decimal.Zero)
		if !p.Equal(dec(0.95)) {
			t.Errorf("p = %s, want ceiling 0.95", p)
		}
	})
}

func TestOpportunityCostBps(t *testing.T) {
	// (1 - 0.6) * 5s * 2 bps/s = 4
	got := OpportunityCostBps(dec(0.6), dec(5), dec(2))
	if !got.Equal(dec(4)) {
		t.Errorf("opportunity cost = %s, want 4", got)
	}
	if !OpportunityCostBps(dec(1), dec(5), dec(2)).IsZero() {
		t.Error("a certain fill has no opportunity cost")
	}
}

func TestEstimateNetEdge(t *testing.T) {
	m := NewMakerModel(DefaultMakerConfig())
	est := m.EstimateNetEdge(
		dec(80), dec(5), dec(5), dec(5),
		dec(100), dec(1), 0, decimal.Zero,
		dec(5), dec(1),
	)
	// p = 0.7, oppCost = 0.3*5*1 = 1.5, net = 80 - 5 - 5 - 5 - 1.5 = 63.5
	if !est.FillProbability.Equal(dec(0.7)) {
		t.Errorf("fill prob = %s", est.FillProbability)
	}
	if !est.OpportunityCostBps.Equal(dec(1.5)) {
		t.Errorf("opp cost = %s", est.OpportunityCostBps)
	}
	if !est.NetEdgeBps.Equal(dec(63.5)) {
		t.Errorf("net edge = %s, want 63.5", est.NetEdgeBps)
	}
}
