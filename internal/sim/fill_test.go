package sim

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func testFees() map[string]domain.FeeStructure {
	return map[string]domain.FeeStructure{
		"upbit":   {Exchange: "upbit", TakerFeeBps: dec(5)},
		"binance": {Exchange: "binance", TakerFeeBps: dec(10)},
	}
}

func quietExecutor(cfg FillConfig) *Executor {
	return NewExecutor(cfg, testFees(), slog.New(slog.DiscardHandler))
}

func buyIntent(quote float64) domain.OrderIntent {
	return domain.OrderIntent{
		ID:          "intent-buy",
		Exchange:    "upbit",
		Symbol:      "BTC",
		Side:        domain.SideBuy,
		Type:        domain.IntentMarket,
		QuoteAmount: dec(quote),
		QtySource:   domain.QtyDirect,
	}
}

func sellIntent(qty float64) domain.OrderIntent {
	return domain.OrderIntent{
		ID:        "intent-sell",
		Exchange:  "binance",
		Symbol:    "BTC",
		Side:      domain.SideSell,
		Type:      domain.IntentMarket,
		BaseQty:   dec(qty),
		QtySource: domain.QtyFromEntryFill,
	}
}

func TestExecute(t *testing.T) {
	cleanCfg := FillConfig{
		SlippageBps: dec(5),
		LatencyBps:  dec(3),
		Seed:        42,
	}

	t.Run("buy_fills_above_reference", func(t *testing.T) {
		e := quietExecutor(cleanCfg)
		res, err := e.Execute(buyIntent(1_000_000), dec(90_000_000))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.FilledPrice.GreaterThan(res.RefPrice) {
			t.Errorf("buy filled at %s, at or below ref %s", res.FilledPrice, res.RefPrice)
		}
		// 8 bps total perturbation.
		want := dec(90_000_000).Mul(decimal.NewFromInt(1).Add(dec(8).Div(decimal.NewFromInt(10000))))
		if !res.FilledPrice.Equal(want) {
			t.Errorf("filled price %s, want %s", res.FilledPrice, want)
		}
	})

	t.Run("sell_fills_below_reference", func(t *testing.T) {
		e := quietExecutor(cleanCfg)
		res, err := e.Execute(sellIntent(0.01), dec(91_000_000))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.FilledPrice.LessThan(res.RefPrice) {
			t.Errorf("sell filled at %s, at or above ref %s", res.FilledPrice, res.RefPrice)
		}
		if !res.FilledQty.Equal(dec(0.01)) {
			t.Errorf("full fill expected, got qty %s", res.FilledQty)
		}
	})

	t.Run("fee_charged_per_venue", func(t *testing.T) {
		e := quietExecutor(cleanCfg)
		res, err := e.Execute(buyIntent(1_000_000), dec(90_000_000))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := dec(5).Div(decimal.NewFromInt(10000)).Mul(res.FilledPrice.Mul(res.FilledQty))
		if !res.Fee.Equal(want) {
			t.Errorf("fee %s, want %s", res.Fee, want)
		}
	})

	t.Run("deterministic_under_same_seed", func(t *testing.T) {
		cfg := FillConfig{
			SlippageBps:         dec(5),
			LatencyBps:          dec(3),
			LatencyMsJitter:     60,
			PartialFillProb:     0.3,
			PartialFillMinRatio: 0.5,
			AdverseProb:         0.2,
			AdverseExtraBps:     dec(10),
			RejectProb:          0.05,
			Seed:                7,
		}
		a, b := quietExecutor(cfg), quietExecutor(cfg)
		for i := 0; i < 50; i++ {
			ra, errA := a.Execute(buyIntent(1_000_000), dec(90_000_000))
			rb, errB := b.Execute(buyIntent(1_000_000), dec(90_000_000))
			if (errA == nil) != (errB == nil) {
				t.Fatalf("iteration %d: error divergence", i)
			}
			if ra.Rejected != rb.Rejected || !ra.FilledQty.Equal(rb.FilledQty) ||
				!ra.FilledPrice.Equal(rb.FilledPrice) || ra.LatencyMs != rb.LatencyMs {
				t.Fatalf("iteration %d: fills diverged under identical seeds", i)
			}
		}
	})

	t.Run("certain_reject", func(t *testing.T) {
		cfg := cleanCfg
		cfg.RejectProb = 1
		e := quietExecutor(cfg)
		res, err := e.Execute(buyIntent(1_000_000), dec(90_000_000))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Rejected || res.RejectReason != "sim_reject" {
			t.Errorf("rejected=%v reason=%q", res.Rejected, res.RejectReason)
		}
		if !res.FilledQty.IsZero() {
			t.Errorf("rejected fill has qty %s", res.FilledQty)
		}
	})

	t.Run("partial_fill_bounded", func(t *testing.T) {
		cfg := cleanCfg
		cfg.PartialFillProb = 1
		cfg.PartialFillMinRatio = 0.5
		e := quietExecutor(cfg)
		for i := 0; i < 20; i++ {
			res, err := e.Execute(sellIntent(1), dec(100))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.PartialFillRatio.LessThan(dec(0.5)) || res.PartialFillRatio.GreaterThan(dec(1)) {
				t.Errorf("fill ratio %s out of [0.5, 1]", res.PartialFillRatio)
			}
		}
	})

	t.Run("non_positive_ref_price", func(t *testing.T) {
		e := quietExecutor(cleanCfg)
		if _, err := e.Execute(buyIntent(1_000_000), decimal.Zero); err == nil {
			t.Error("expected error for zero reference price")
		}
	})

	t.Run("sized_intent_required", func(t *testing.T) {
		e := quietExecutor(cleanCfg)
		it := buyIntent(0)
		if _, err := e.Execute(it, dec(100)); err == nil {
			t.Error("expected error for unsized intent")
		}
	})
}
