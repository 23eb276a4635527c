package source

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/detect"
	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/execmodel"
	"github.com/minkyupark/arbpaper/internal/metrics"
)

func newMock(seed int64, kpi *metrics.PaperMetrics) *MockSource {
	logger := slog.New(slog.DiscardHandler)
	detector := detect.NewDetector(detect.DetectorConfig{
		VenueA: "upbit",
		VenueB: "binance",
		BreakEven: domain.BreakEvenParams{
			Entry:       domain.FeeStructure{TakerFeeBps: decimal.NewFromInt(5)},
			Exit:        domain.FeeStructure{TakerFeeBps: decimal.NewFromInt(10)},
			SlippageBps: decimal.NewFromInt(5),
			LatencyBps:  decimal.NewFromInt(5),
			BufferBps:   decimal.NewFromInt(10),
		},
		DriftBps: decimal.NewFromInt(5),
	}, logger)
	costs := execmodel.NewCostModel(execmodel.DefaultCostConfig())

	return NewMockSource(MockConfig{
		Symbols:            []string{"BTC", "ETH"},
		BasePrice:          map[string]float64{"BTC": 90_000_000, "ETH": 4_500_000},
		ProfitableFraction: 0.3,
		MaxSpreadBps:       150,
		Notional:           decimal.NewFromInt(1_000_000),
		Seed:               seed,
	}, detector, costs, kpi, logger)
}

func TestGenerateDeterminism(t *testing.T) {
	ctx := context.Background()
	a := newMock(7, metrics.New(time.Now()))
	b := newMock(7, metrics.New(time.Now()))

	for iter := 0; iter < 100; iter++ {
		ca, errA := a.Generate(ctx, iter)
		cb, errB := b.Generate(ctx, iter)
		if errA != nil || errB != nil {
			t.Fatalf("iteration %d: errors %v / %v", iter, errA, errB)
		}
		if len(ca) != len(cb) {
			t.Fatalf("iteration %d: %d vs %d candidates under the same seed", iter, len(ca), len(cb))
		}
		for i := range ca {
			if ca[i].Symbol != cb[i].Symbol || !ca[i].SpreadBps.Equal(cb[i].SpreadBps) {
				t.Fatalf("iteration %d: candidate %d diverged", iter, i)
			}
		}
	}
}

func TestGenerateFiltersUnprofitable(t *testing.T) {
	ctx := context.Background()
	kpi := metrics.New(time.Now())
	src := newMock(42, kpi)

	var emitted int
	for iter := 0; iter < 200; iter++ {
		cands, err := src.Generate(ctx, iter)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		for _, c := range cands {
			emitted++
			if !c.Profitable {
				t.Errorf("unprofitable candidate %s emitted", c.Symbol)
			}
			if c.ExecCost == nil {
				t.Error("candidate emitted without exec-cost breakdown")
			}
			if c.Direction == domain.DirectionNone {
				t.Error("directionless candidate emitted")
			}
		}
	}
	if emitted == 0 {
		t.Fatal("200 iterations emitted no profitable candidates")
	}

	snap := kpi.Snapshot(time.Now())
	if snap.Opportunities == 0 {
		t.Error("no opportunities counted")
	}
	if snap.RejectReasons[metrics.RejectNotProfitable] == 0 {
		t.Error("no not_profitable rejects counted; synthetic spread too generous")
	}
}

func TestGenerateMissingBasePrice(t *testing.T) {
	kpi := metrics.New(time.Now())
	src := newMock(1, kpi)
	src.cfg.Symbols = []string{"BTC", "SOL"} // SOL has no base price

	cands, err := src.Generate(context.Background(), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, c := range cands {
		if c.Symbol == "SOL" {
			t.Error("candidate synthesized without a base price")
		}
	}
	snap := kpi.Snapshot(time.Now())
	if snap.RejectReasons[metrics.RejectPriceMissing] == 0 {
		t.Error("missing base price not counted as price_missing")
	}
}

func TestGenerateHonorsContext(t *testing.T) {
	src := newMock(1, metrics.New(time.Now()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Generate(ctx, 0); err == nil {
		t.Error("expected context error")
	}
}
