package edge

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

func bps(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestBreakEvenBps(t *testing.T) {
	t.Run("round_trip_formula", func(t *testing.T) {
		// 5 + 10 + 2*(5+5) + 10 = 45
		p := domain.BreakEvenParams{
			Entry:       domain.FeeStructure{Exchange: "upbit", TakerFeeBps: bps(5)},
			Exit:        domain.FeeStructure{Exchange: "binance", TakerFeeBps: bps(10)},
			SlippageBps: bps(5),
			LatencyBps:  bps(5),
			BufferBps:   bps(10),
		}
		got := BreakEvenBps(p)
		if !got.Equal(bps(45)) {
			t.Errorf("break-even = %s, want 45", got)
		}
	})

	t.Run("symmetric_fees_round_trip_risk", func(t *testing.T) {
		// 15 + 15 + 2*(10+0) + 5 = 55. A single-leg risk term would give
		// 45; the execution risk is paid on both legs.
		p := domain.BreakEvenParams{
			Entry:       domain.FeeStructure{Exchange: "upbit", TakerFeeBps: bps(15)},
			Exit:        domain.FeeStructure{Exchange: "binance", TakerFeeBps: bps(15)},
			SlippageBps: bps(10),
			LatencyBps:  bps(0),
			BufferBps:   bps(5),
		}
		got := BreakEvenBps(p)
		if !got.Equal(bps(55)) {
			t.Errorf("break-even = %s, want 55", got)
		}
	})

	t.Run("exec_risk_doubled", func(t *testing.T) {
		base := domain.BreakEvenParams{
			Entry:       domain.FeeStructure{TakerFeeBps: bps(10)},
			Exit:        domain.FeeStructure{TakerFeeBps: bps(10)},
			SlippageBps: bps(0),
			LatencyBps:  bps(0),
			BufferBps:   bps(0),
		}
		withRisk := base
		withRisk.SlippageBps = bps(7)
		diff := BreakEvenBps(withRisk).Sub(BreakEvenBps(base))
		if !diff.Equal(bps(14)) {
			t.Errorf("slippage of 7 bps should raise break-even by 14, got %s", diff)
		}
	})

	t.Run("monotone_in_every_param", func(t *testing.T) {
		base := domain.BreakEvenParams{
			Entry:       domain.FeeStructure{TakerFeeBps: bps(5)},
			Exit:        domain.FeeStructure{TakerFeeBps: bps(10)},
			SlippageBps: bps(5),
			LatencyBps:  bps(5),
			BufferBps:   bps(10),
		}
		ref := BreakEvenBps(base)

		bumps := []func(*domain.BreakEvenParams){
			func(p *domain.BreakEvenParams) { p.Entry.TakerFeeBps = p.Entry.TakerFeeBps.Add(bps(1)) },
			func(p *domain.BreakEvenParams) { p.Exit.TakerFeeBps = p.Exit.TakerFeeBps.Add(bps(1)) },
			func(p *domain.BreakEvenParams) { p.SlippageBps = p.SlippageBps.Add(bps(1)) },
			func(p *domain.BreakEvenParams) { p.LatencyBps = p.LatencyBps.Add(bps(1)) },
			func(p *domain.BreakEvenParams) { p.BufferBps = p.BufferBps.Add(bps(1)) },
		}
		for i, bump := range bumps {
			p := base
			bump(&p)
			if !BreakEvenBps(p).GreaterThan(ref) {
				t.Errorf("bump %d did not increase break-even", i)
			}
		}
	})
}

func TestEdgeBps(t *testing.T) {
	got := EdgeBps(bps(100), bps(45))
	if !got.Equal(bps(55)) {
		t.Errorf("edge = %s, want 55", got)
	}
	neg := EdgeBps(bps(30), bps(45))
	if !neg.Equal(bps(-15)) {
		t.Errorf("edge = %s, want -15", neg)
	}
}

func TestNormalizeToKRW(t *testing.T) {
	fx := decimal.NewFromInt(1380)

	t.Run("krw_identity", func(t *testing.T) {
		price := decimal.NewFromInt(90_000_000)
		got, err := NormalizeToKRW(price, "KRW", fx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(price) {
			t.Errorf("KRW price changed: %s", got)
		}
	})

	t.Run("usdt_converted", func(t *testing.T) {
		got, err := NormalizeToKRW(decimal.NewFromInt(65000), "USDT", fx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := decimal.NewFromInt(65000).Mul(fx)
		if !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("case_and_whitespace_tolerant", func(t *testing.T) {
		got, err := NormalizeToKRW(decimal.NewFromInt(100), " usd ", fx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(138000)) {
			t.Errorf("got %s", got)
		}
	})

	t.Run("unsupported_currency", func(t *testing.T) {
		_, err := NormalizeToKRW(decimal.NewFromInt(100), "JPY", fx)
		if !errors.Is(err, domain.ErrUnsupportedCurrency) {
			t.Errorf("want ErrUnsupportedCurrency, got %v", err)
		}
	})
}

func TestIsUnitsMismatch(t *testing.T) {
	cases := []struct {
		name   string
		spread int64
		edge   int64
		want   bool
	}{
		{"normal_spread", 80, 35, false},
		{"at_threshold", 100000, 0, false},
		{"spread_over", 100001, 0, true},
		{"edge_over", 0, 130000, true},
		{"negative_edge_over", 0, -130000, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsUnitsMismatch(bps(tc.spread), bps(tc.edge))
			if got != tc.want {
				t.Errorf("IsUnitsMismatch(%d, %d) = %v, want %v", tc.spread, tc.edge, got, tc.want)
			}
		})
	}
}
