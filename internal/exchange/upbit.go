package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// UpbitConfig configures the Upbit public-data client.
type UpbitConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Upbit is a thin client for Upbit's public ticker and orderbook endpoints.
// Quotes are KRW-native.
type Upbit struct {
	cfg    UpbitConfig
	client *http.Client
}

// NewUpbit creates an Upbit client.
func NewUpbit(cfg UpbitConfig) *Upbit {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.upbit.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Upbit{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Exchange returns "upbit".
func (u *Upbit) Exchange() string { return "upbit" }

// QuoteCurrency returns "KRW".
func (u *Upbit) QuoteCurrency() string { return "KRW" }

// market maps an engine symbol ("BTC") to an Upbit market code ("KRW-BTC").
func (u *Upbit) market(symbol string) string { return "KRW-" + symbol }

// GetTicker fetches the latest trade and bid/ask for one symbol.
func (u *Upbit) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	var trades []struct {
		TradePrice float64 `json:"trade_price"`
		Timestamp  int64   `json:"timestamp"`
	}
	if err := u.get(ctx, "/v1/ticker", symbol, &trades); err != nil {
		return domain.Ticker{}, err
	}
	if len(trades) == 0 {
		return domain.Ticker{}, fmt.Errorf("exchange: upbit ticker %s: %w", symbol, domain.ErrNotFound)
	}

	// Upbit's ticker endpoint has no bid/ask; take top of book.
	book, err := u.GetOrderbook(ctx, symbol, 1)
	if err != nil {
		return domain.Ticker{}, err
	}

	return domain.Ticker{
		Exchange:      "upbit",
		Symbol:        symbol,
		Bid:           book.BestBid(),
		Ask:           book.BestAsk(),
		Last:          trades[0].TradePrice,
		QuoteCurrency: "KRW",
		Timestamp:     time.UnixMilli(trades[0].Timestamp).UTC(),
	}, nil
}

// GetOrderbook fetches the order book for one symbol. Upbit returns a fixed
// number of units; the result is truncated to depth.
func (u *Upbit) GetOrderbook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	var books []struct {
		Timestamp int64 `json:"timestamp"`
		Units     []struct {
			AskPrice float64 `json:"ask_price"`
			BidPrice float64 `json:"bid_price"`
			AskSize  float64 `json:"ask_size"`
			BidSize  float64 `json:"bid_size"`
		} `json:"orderbook_units"`
	}
	if err := u.get(ctx, "/v1/orderbook", symbol, &books); err != nil {
		return domain.OrderbookSnapshot{}, err
	}
	if len(books) == 0 {
		return domain.OrderbookSnapshot{}, fmt.Errorf("exchange: upbit orderbook %s: %w", symbol, domain.ErrNotFound)
	}

	snap := domain.OrderbookSnapshot{
		Exchange:  "upbit",
		Symbol:    symbol,
		Timestamp: time.UnixMilli(books[0].Timestamp).UTC(),
	}
	for i, unit := range books[0].Units {
		if i >= depth {
			break
		}
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: unit.BidPrice, Size: unit.BidSize})
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: unit.AskPrice, Size: unit.AskSize})
	}
	return snap, nil
}

func (u *Upbit) get(ctx context.Context, path, symbol string, out any) error {
	q := url.Values{"markets": {u.market(symbol)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("exchange: upbit %s: %w", path, err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("exchange: upbit %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("exchange: upbit %s: %w", path, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange: upbit %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("exchange: upbit %s: decode: %w", path, err)
	}
	return nil
}

var _ domain.MarketData = (*Upbit)(nil)
