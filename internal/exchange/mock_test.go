package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/minkyupark/arbpaper/internal/domain"
)

func testMockConfig() MockConfig {
	return MockConfig{
		Exchange:      "upbit",
		QuoteCurrency: "KRW",
		BasePrice:     map[string]float64{"BTC": 90_000_000},
		SpreadBps:     10,
		WalkBps:       5,
		Seed:          7,
	}
}

func TestMockTicker(t *testing.T) {
	ctx := context.Background()

	t.Run("same_seed_same_walk", func(t *testing.T) {
		a := NewMock(testMockConfig())
		b := NewMock(testMockConfig())
		for i := 0; i < 50; i++ {
			ta, err := a.GetTicker(ctx, "BTC")
			if err != nil {
				t.Fatalf("ticker a: %v", err)
			}
			tb, err := b.GetTicker(ctx, "BTC")
			if err != nil {
				t.Fatalf("ticker b: %v", err)
			}
			if ta.Last != tb.Last || ta.Bid != tb.Bid || ta.Ask != tb.Ask {
				t.Fatalf("walk diverged at step %d: %v vs %v", i, ta, tb)
			}
		}
	})

	t.Run("bid_below_ask_around_last", func(t *testing.T) {
		m := NewMock(testMockConfig())
		tick, err := m.GetTicker(ctx, "BTC")
		if err != nil {
			t.Fatalf("ticker: %v", err)
		}
		if !(tick.Bid < tick.Last && tick.Last < tick.Ask) {
			t.Errorf("quote not ordered: bid %.2f last %.2f ask %.2f",
				tick.Bid, tick.Last, tick.Ask)
		}
		if tick.QuoteCurrency != "KRW" || tick.Exchange != "upbit" {
			t.Errorf("venue identity lost: %s/%s", tick.Exchange, tick.QuoteCurrency)
		}
	})

	t.Run("unknown_symbol", func(t *testing.T) {
		m := NewMock(testMockConfig())
		if _, err := m.GetTicker(ctx, "DOGE"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("want ErrNotFound, got %v", err)
		}
	})
}

func TestMockOrderbook(t *testing.T) {
	ctx := context.Background()
	m := NewMock(testMockConfig())

	book, err := m.GetOrderbook(ctx, "BTC", 5)
	if err != nil {
		t.Fatalf("orderbook: %v", err)
	}
	if len(book.Bids) != 5 || len(book.Asks) != 5 {
		t.Fatalf("depth = %d/%d, want 5/5", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].Price >= book.Asks[0].Price {
		t.Errorf("crossed book: bid %.2f >= ask %.2f", book.Bids[0].Price, book.Asks[0].Price)
	}
	for i := 1; i < 5; i++ {
		if book.Bids[i].Price >= book.Bids[i-1].Price {
			t.Errorf("bids not descending at level %d", i)
		}
		if book.Asks[i].Price <= book.Asks[i-1].Price {
			t.Errorf("asks not ascending at level %d", i)
		}
		if book.Bids[i].Size >= book.Bids[i-1].Size {
			t.Errorf("bid size not decaying at level %d", i)
		}
	}

	if _, err := m.GetOrderbook(ctx, "DOGE", 5); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound for unknown symbol, got %v", err)
	}
}
