package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// BinanceConfig configures the Binance public-data client.
type BinanceConfig struct {
	BaseURL string
	WSURL   string
	Timeout time.Duration
	// Symbols to subscribe on the bookTicker stream, engine form ("BTC").
	Symbols []string
}

// Binance serves tickers from a bookTicker WebSocket stream (kept warm by
// Run) with a REST fallback, and order books over REST. Quotes are
// USDT-native.
type Binance struct {
	cfg    BinanceConfig
	client *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	tickers map[string]domain.Ticker
}

// NewBinance creates a Binance client.
func NewBinance(cfg BinanceConfig, logger *slog.Logger) *Binance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	if cfg.WSURL == "" {
		cfg.WSURL = "wss://stream.binance.com:9443/ws"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Binance{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(slog.String("component", "binance_feed")),
		tickers: make(map[string]domain.Ticker),
	}
}

// Exchange returns "binance".
func (b *Binance) Exchange() string { return "binance" }

// QuoteCurrency returns "USDT".
func (b *Binance) QuoteCurrency() string { return "USDT" }

// pair maps an engine symbol ("BTC") to a Binance pair ("BTCUSDT").
func (b *Binance) pair(symbol string) string { return strings.ToUpper(symbol) + "USDT" }

// Run keeps the bookTicker stream connected until ctx is cancelled,
// reconnecting with backoff on disconnect. Optional: without it GetTicker
// falls back to REST.
func (b *Binance) Run(ctx context.Context) error {
	if len(b.cfg.Symbols) == 0 {
		b.logger.Info("no symbols to stream, ws feed idle")
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.runStream(ctx); err != nil && ctx.Err() == nil {
			b.logger.Warn("binance ws disconnected, reconnecting", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (b *Binance) runStream(ctx context.Context) error {
	streams := make([]string, 0, len(b.cfg.Symbols))
	for _, s := range b.cfg.Symbols {
		streams = append(streams, strings.ToLower(b.pair(s))+"@bookTicker")
	}
	wsURL := b.cfg.WSURL + "/" + strings.Join(streams, "/")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("exchange: binance ws dial: %w", err)
	}
	defer conn.Close()
	b.logger.Info("binance ws connected", slog.Int("streams", len(streams)))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg struct {
			Symbol string `json:"s"`
			Bid    string `json:"b"`
			Ask    string `json:"a"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("exchange: binance ws read: %w", err)
		}
		bid, err1 := strconv.ParseFloat(msg.Bid, 64)
		ask, err2 := strconv.ParseFloat(msg.Ask, 64)
		if err1 != nil || err2 != nil || msg.Symbol == "" {
			continue
		}
		symbol := strings.TrimSuffix(msg.Symbol, "USDT")
		b.mu.Lock()
		b.tickers[symbol] = domain.Ticker{
			Exchange:      "binance",
			Symbol:        symbol,
			Bid:           bid,
			Ask:           ask,
			Last:          (bid + ask) / 2,
			QuoteCurrency: "USDT",
			Timestamp:     time.Now().UTC(),
		}
		b.mu.Unlock()
	}
}

// GetTicker serves from the stream cache when fresh, otherwise REST.
func (b *Binance) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	b.mu.Lock()
	t, ok := b.tickers[strings.ToUpper(symbol)]
	b.mu.Unlock()
	if ok && time.Since(t.Timestamp) < 10*time.Second {
		return t, nil
	}

	var body struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	q := url.Values{"symbol": {b.pair(symbol)}}
	if err := b.get(ctx, "/api/v3/ticker/bookTicker", q, &body); err != nil {
		return domain.Ticker{}, err
	}
	bid, err1 := strconv.ParseFloat(body.BidPrice, 64)
	ask, err2 := strconv.ParseFloat(body.AskPrice, 64)
	if err1 != nil || err2 != nil {
		return domain.Ticker{}, fmt.Errorf("exchange: binance ticker %s: bad prices", symbol)
	}
	return domain.Ticker{
		Exchange:      "binance",
		Symbol:        strings.ToUpper(symbol),
		Bid:           bid,
		Ask:           ask,
		Last:          (bid + ask) / 2,
		QuoteCurrency: "USDT",
		Timestamp:     time.Now().UTC(),
	}, nil
}

// GetOrderbook fetches depth over REST.
func (b *Binance) GetOrderbook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	var body struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	q := url.Values{
		"symbol": {b.pair(symbol)},
		"limit":  {strconv.Itoa(depth)},
	}
	if err := b.get(ctx, "/api/v3/depth", q, &body); err != nil {
		return domain.OrderbookSnapshot{}, err
	}

	snap := domain.OrderbookSnapshot{
		Exchange:  "binance",
		Symbol:    strings.ToUpper(symbol),
		Timestamp: time.Now().UTC(),
	}
	for _, lvl := range body.Bids {
		if l, ok := parseLevel(lvl); ok {
			snap.Bids = append(snap.Bids, l)
		}
	}
	for _, lvl := range body.Asks {
		if l, ok := parseLevel(lvl); ok {
			snap.Asks = append(snap.Asks, l)
		}
	}
	return snap, nil
}

func parseLevel(lvl []string) (domain.PriceLevel, bool) {
	if len(lvl) < 2 {
		return domain.PriceLevel{}, false
	}
	p, err1 := strconv.ParseFloat(lvl[0], 64)
	s, err2 := strconv.ParseFloat(lvl[1], 64)
	if err1 != nil || err2 != nil {
		return domain.PriceLevel{}, false
	}
	return domain.PriceLevel{Price: p, Size: s}, true
}

func (b *Binance) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("exchange: binance %s: %w", path, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("exchange: binance %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
		return fmt.Errorf("exchange: binance %s: %w", path, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange: binance %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("exchange: binance %s: decode: %w", path, err)
	}
	return nil
}

var _ domain.MarketData = (*Binance)(nil)
