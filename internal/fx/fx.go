// Package fx supplies settlement-currency conversion rates. The engine
// treats FX staleness as a hard reject: a mis-priced cross-currency spread
// is the highest-severity failure mode this system has, so there is no
// silent fallback to a stale rate.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// FixedProvider returns a constant rate. Useful for offline/mock runs; the
// app rejects it at startup when the run mode is live.
type FixedProvider struct {
	rate decimal.Decimal
	asOf time.Time
}

// NewFixedProvider creates a FixedProvider pinned at rate.
func NewFixedProvider(rate decimal.Decimal) *FixedProvider {
	return &FixedProvider{rate: rate, asOf: time.Now().UTC()}
}

// GetFXRate returns the fixed rate. The as-of time is refreshed on every
// call so TTL checks never reject a deliberately fixed rate.
func (p *FixedProvider) GetFXRate(ctx context.Context, from, to string) (decimal.Decimal, time.Time, error) {
	return p.rate, time.Now().UTC(), nil
}

// IsLive reports false: the rate does not track the market.
func (p *FixedProvider) IsLive() bool { return false }

// HTTPConfig configures the live HTTP provider.
type HTTPConfig struct {
	// URL is the rate endpoint; it must return {"rate": <number>}.
	URL string
	// RefreshInterval bounds how often the upstream is queried; between
	// refreshes the cached rate (with its original as-of time) is served.
	RefreshInterval time.Duration
	Timeout         time.Duration
}

// HTTPProvider fetches the rate over HTTP with short-lived caching.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	lastRate decimal.Decimal
	lastAsOf time.Time
}

// NewHTTPProvider creates a live HTTP-backed provider.
func NewHTTPProvider(cfg HTTPConfig, logger *slog.Logger) *HTTPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 10 * time.Second
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(slog.String("component", "fx_http")),
	}
}

// GetFXRate returns the cached rate when fresh, otherwise refetches. A fetch
// failure with no cached rate is an error; with a cached rate the stale
// value and its true as-of time are returned so the caller's TTL check can
// decide.
func (p *HTTPProvider) GetFXRate(ctx context.Context, from, to string) (decimal.Decimal, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastAsOf.IsZero() && time.Since(p.lastAsOf) < p.cfg.RefreshInterval {
		return p.lastRate, p.lastAsOf, nil
	}

	rate, err := p.fetch(ctx)
	if err != nil {
		if p.lastAsOf.IsZero() {
			return decimal.Zero, time.Time{}, fmt.Errorf("fx: fetch %s/%s: %w", from, to, err)
		}
		p.logger.Warn("fx refresh failed, serving cached rate",
			slog.String("error", err.Error()),
			slog.Time("as_of", p.lastAsOf),
		)
		return p.lastRate, p.lastAsOf, nil
	}

	p.lastRate = rate
	p.lastAsOf = time.Now().UTC()
	return p.lastRate, p.lastAsOf, nil
}

func (p *HTTPProvider) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}
	if !body.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s", body.Rate)
	}
	return body.Rate, nil
}

// IsLive reports true.
func (p *HTTPProvider) IsLive() bool { return true }

// RequireLive returns an error when mode is "live" but the provider is not.
func RequireLive(p domain.FXProvider, mode string) error {
	if mode == "live" && !p.IsLive() {
		return domain.ErrFixedFXInLiveMode
	}
	return nil
}

var (
	_ domain.FXProvider = (*FixedProvider)(nil)
	_ domain.FXProvider = (*HTTPProvider)(nil)
)
