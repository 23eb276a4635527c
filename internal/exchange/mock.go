// Package exchange holds the venue market-data clients: a deterministic
// mock for offline runs and thin Upbit/Binance adapters for live data.
package exchange

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// MockConfig configures the synthetic venue.
type MockConfig struct {
	Exchange      string
	QuoteCurrency string
	// BasePrice is the anchor price per symbol in the venue's quote currency.
	BasePrice map[string]float64
	// SpreadBps is the synthetic bid/ask half-spread.
	SpreadBps float64
	// WalkBps bounds the per-call random walk step.
	WalkBps float64
	Seed    int64
}

// Mock is a deterministic synthetic market-data venue. Prices follow a
// seeded random walk around the configured anchors, so paired mock venues
// drift apart and converge, producing realistic spread dynamics.
type Mock struct {
	cfg MockConfig

	mu  sync.Mutex
	rng *rand.Rand
	px  map[string]float64
}

// NewMock creates a Mock venue.
func NewMock(cfg MockConfig) *Mock {
	px := make(map[string]float64, len(cfg.BasePrice))
	for s, p := range cfg.BasePrice {
		px[s] = p
	}
	return &Mock{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		px:  px,
	}
}

// Exchange returns the configured venue name.
func (m *Mock) Exchange() string { return m.cfg.Exchange }

// QuoteCurrency returns the venue's quote currency.
func (m *Mock) QuoteCurrency() string { return m.cfg.QuoteCurrency }

// GetTicker advances the walk one step and returns the synthetic quote.
func (m *Mock) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.px[symbol]
	if !ok {
		return domain.Ticker{}, domain.ErrNotFound
	}

	step := (m.rng.Float64()*2 - 1) * m.cfg.WalkBps / 10000
	p = p * (1 + step)
	m.px[symbol] = p

	half := p * m.cfg.SpreadBps / 2 / 10000
	return domain.Ticker{
		Exchange:      m.cfg.Exchange,
		Symbol:        symbol,
		Bid:           p - half,
		Ask:           p + half,
		Last:          p,
		QuoteCurrency: m.cfg.QuoteCurrency,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// GetOrderbook builds a synthetic book of the requested depth around the
// current walk price, sizes decaying away from the top of book.
func (m *Mock) GetOrderbook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	m.mu.Lock()
	p, ok := m.px[symbol]
	topSize := 0.5 + m.rng.Float64()
	m.mu.Unlock()
	if !ok {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}

	half := p * m.cfg.SpreadBps / 2 / 10000
	tick := half / 2
	snap := domain.OrderbookSnapshot{
		Exchange:  m.cfg.Exchange,
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
	}
	for i := 0; i < depth; i++ {
		decay := 1.0 / float64(i+1)
		snap.Bids = append(snap.Bids, domain.PriceLevel{
			Price: p - half - tick*float64(i),
			Size:  topSize * decay,
		})
		snap.Asks = append(snap.Asks, domain.PriceLevel{
			Price: p + half + tick*float64(i),
			Size:  topSize * decay,
		})
	}
	return snap, nil
}

var _ domain.MarketData = (*Mock)(nil)
