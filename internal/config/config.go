// Package config defines the top-level configuration for the paper-trading
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBPAPER_* environment variables.
type Config struct {
	VenueA      VenueConfig       `toml:"venue_a"`
	VenueB      VenueConfig       `toml:"venue_b"`
	Symbols     []string          `toml:"symbols"`
	FX          FXConfig          `toml:"fx"`
	Detect      DetectConfig      `toml:"detect"`
	OBI         OBIConfig         `toml:"obi"`
	Calibration CalibrationConfig `toml:"calibration"`
	ExecCost    ExecCostConfig    `toml:"exec_cost"`
	Maker       MakerConfig       `toml:"maker"`
	Trade       TradeConfig       `toml:"trade"`
	Sim         SimConfig         `toml:"sim"`
	Watcher     WatcherConfig     `toml:"watcher"`
	Mock        MockConfig        `toml:"mock"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Evidence    EvidenceConfig    `toml:"evidence"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// VenueConfig describes one exchange leg.
type VenueConfig struct {
	Name          string  `toml:"name"`
	QuoteCurrency string  `toml:"quote_currency"`
	BaseURL       string  `toml:"base_url"`
	WSURL         string  `toml:"ws_url"`
	TakerFeeBps   float64 `toml:"taker_fee_bps"`
	MakerFeeBps   float64 `toml:"maker_fee_bps"`
}

// FXConfig controls the USD/KRW conversion source.
type FXConfig struct {
	// URL enables the live HTTP rate source; empty means fixed rate.
	URL             string   `toml:"url"`
	FixedRate       float64  `toml:"fixed_rate"`
	RefreshInterval duration `toml:"refresh_interval"`
	TTL             duration `toml:"ttl"`
	Timeout         duration `toml:"timeout"`
}

// DetectConfig holds the break-even and drift parameters.
type DetectConfig struct {
	SlippageBps float64 `toml:"slippage_bps"`
	LatencyBps  float64 `toml:"latency_bps"`
	BufferBps   float64 `toml:"buffer_bps"`
	DriftBps    float64 `toml:"drift_bps"`
}

// OBIConfig holds the order-book-imbalance gate parameters.
type OBIConfig struct {
	Enabled   bool    `toml:"enabled"`
	TopLevels int     `toml:"top_levels"`
	Threshold float64 `toml:"threshold"`
	TopK      int     `toml:"top_k"`
}

// CalibrationConfig holds dynamic threshold calibration parameters.
type CalibrationConfig struct {
	Enabled     bool     `toml:"enabled"`
	Warmup      duration `toml:"warmup"`
	Percentile  float64  `toml:"percentile"`
	MinEdgeBps  float64  `toml:"min_edge_bps"`
	MinPassRate float64  `toml:"min_pass_rate"`
	MinSamples  int      `toml:"min_samples"`
}

// ExecCostConfig holds the taker execution-cost model parameters.
type ExecCostConfig struct {
	SpreadCostBps         float64 `toml:"spread_cost_bps"`
	SlippageAlpha         float64 `toml:"slippage_alpha"`
	SlippageCapBps        float64 `toml:"slippage_cap_bps"`
	DefaultSlippageBps    float64 `toml:"default_slippage_bps"`
	PartialFillPenaltyBps float64 `toml:"partial_fill_penalty_bps"`
	SafeSizeRatio         float64 `toml:"safe_size_ratio"`
}

// MakerConfig holds the maker fill-probability model parameters.
type MakerConfig struct {
	BaseProb         float64 `toml:"base_prob"`
	MinProb          float64 `toml:"min_prob"`
	MaxProb          float64 `toml:"max_prob"`
	SizeRatioPenalty float64 `toml:"size_ratio_penalty"`
	VolPenaltyBps    float64 `toml:"vol_penalty_bps"`
	WaitSeconds      float64 `toml:"wait_seconds"`
	SlipPerSecondBps float64 `toml:"slip_per_second_bps"`
}

// TradeConfig holds the per-trade sizing and loop cadence.
type TradeConfig struct {
	QuoteAmount   float64  `toml:"quote_amount"`
	TickInterval  duration `toml:"tick_interval"`
	MaxIterations int      `toml:"max_iterations"`
	BookDepth     int      `toml:"book_depth"`
}

// SimConfig holds the simulated fill engine parameters.
type SimConfig struct {
	SlippageBps         float64 `toml:"slippage_bps"`
	LatencyBps          float64 `toml:"latency_bps"`
	LatencyMsBase       int64   `toml:"latency_ms_base"`
	LatencyMsJitter     int64   `toml:"latency_ms_jitter"`
	PartialFillProb     float64 `toml:"partial_fill_prob"`
	PartialFillMinRatio float64 `toml:"partial_fill_min_ratio"`
	AdverseProb         float64 `toml:"adverse_prob"`
	AdverseExtraBps     float64 `toml:"adverse_extra_bps"`
	RejectProb          float64 `toml:"reject_prob"`
	Seed                int64   `toml:"seed"`
}

// WatcherConfig holds the run-watcher guard thresholds.
type WatcherConfig struct {
	Interval             duration `toml:"interval"`
	ZeroWinTrades        int64    `toml:"zero_win_trades"`
	NegEdgeWindow        duration `toml:"neg_edge_window"`
	MaxDrawdown          float64  `toml:"max_drawdown"`
	MaxConsecutiveLosses int64    `toml:"max_consecutive_losses"`
	WinrateCap           float64  `toml:"winrate_cap"`
	WinrateMinTrades     int64    `toml:"winrate_min_trades"`
	StarvationMinOpps    int64    `toml:"starvation_min_opps"`
	StarvationWindow     duration `toml:"starvation_window"`
}

// MockConfig holds the synthetic source and venue parameters for mock mode.
type MockConfig struct {
	ProfitableFraction float64            `toml:"profitable_fraction"`
	MaxSpreadBps       float64            `toml:"max_spread_bps"`
	BasePrices         map[string]float64 `toml:"base_prices"`
	// SpreadBps and WalkBps shape the synthetic venue order books used for
	// welding-time spread cost.
	SpreadBps float64 `toml:"spread_bps"`
	WalkBps   float64 `toml:"walk_bps"`
	Seed      int64   `toml:"seed"`
}

// PostgresConfig holds PostgreSQL connection parameters for the ledger.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the control store.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for evidence
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EvidenceConfig holds the local evidence directory settings.
type EvidenceConfig struct {
	Dir string `toml:"dir"`
}

// RateLimitConfig shapes the per-venue request token bucket.
type RateLimitConfig struct {
	PerSecond float64 `toml:"per_second"`
	Burst     int     `toml:"burst"`
}

// duration wraps time.Duration so TOML can parse strings like "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration: a seeded mock run against a
// synthetic Upbit/Binance pair, no external services.
func Defaults() Config {
	return Config{
		VenueA: VenueConfig{
			Name:          "upbit",
			QuoteCurrency: "KRW",
			BaseURL:       "https://api.upbit.com",
			TakerFeeBps:   5,
			MakerFeeBps:   5,
		},
		VenueB: VenueConfig{
			Name:          "binance",
			QuoteCurrency: "USDT",
			BaseURL:       "https://api.binance.com",
			WSURL:         "wss://stream.binance.com:9443/ws",
			TakerFeeBps:   10,
			MakerFeeBps:   10,
		},
		Symbols: []string{"BTC", "ETH"},
		FX: FXConfig{
			FixedRate:       1380,
			RefreshInterval: duration{time.Minute},
			TTL:             duration{5 * time.Minute},
			Timeout:         duration{5 * time.Second},
		},
		Detect: DetectConfig{
			SlippageBps: 5,
			LatencyBps:  5,
			BufferBps:   10,
			DriftBps:    5,
		},
		OBI: OBIConfig{
			Enabled:   true,
			TopLevels: 5,
			Threshold: 0.2,
			TopK:      3,
		},
		Calibration: CalibrationConfig{
			Enabled:     true,
			Warmup:      duration{2 * time.Minute},
			Percentile:  0.7,
			MinEdgeBps:  5,
			MinPassRate: 0.05,
			MinSamples:  50,
		},
		ExecCost: ExecCostConfig{
			SpreadCostBps:         10,
			SlippageAlpha:         5,
			SlippageCapBps:        100,
			DefaultSlippageBps:    20,
			PartialFillPenaltyBps: 15,
			SafeSizeRatio:         0.5,
		},
		Maker: MakerConfig{
			BaseProb:         0.7,
			MinProb:          0.3,
			MaxProb:          0.95,
			SizeRatioPenalty: 0.2,
			VolPenaltyBps:    10,
			WaitSeconds:      5,
			SlipPerSecondBps: 1,
		},
		Trade: TradeConfig{
			QuoteAmount:   1_000_000,
			TickInterval:  duration{time.Second},
			MaxIterations: 0,
			BookDepth:     5,
		},
		Sim: SimConfig{
			SlippageBps:         5,
			LatencyBps:          3,
			LatencyMsBase:       40,
			LatencyMsJitter:     60,
			PartialFillProb:     0.1,
			PartialFillMinRatio: 0.5,
			AdverseProb:         0.05,
			AdverseExtraBps:     10,
			RejectProb:          0.01,
			Seed:                42,
		},
		Watcher: WatcherConfig{
			Interval:             duration{5 * time.Second},
			ZeroWinTrades:        10,
			NegEdgeWindow:        duration{2 * time.Minute},
			MaxDrawdown:          0.5,
			MaxConsecutiveLosses: 8,
			WinrateCap:           0.95,
			WinrateMinTrades:     20,
			StarvationMinOpps:    50,
			StarvationWindow:     duration{5 * time.Minute},
		},
		Mock: MockConfig{
			ProfitableFraction: 0.3,
			MaxSpreadBps:       120,
			BasePrices: map[string]float64{
				"BTC": 90_000_000,
				"ETH": 4_500_000,
			},
			SpreadBps: 10,
			WalkBps:   5,
			Seed:      42,
		},
		Postgres: PostgresConfig{
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Evidence: EvidenceConfig{
			Dir: "evidence",
		},
		RateLimit: RateLimitConfig{
			PerSecond: 5,
			Burst:     10,
		},
		Mode:     "mock",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"mock": true,
	"live": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for internal consistency and returns a
// single error aggregating every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: mock, live)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Symbols) == 0 {
		errs = append(errs, "symbols: at least one symbol is required")
	}
	if c.VenueA.Name == "" || c.VenueB.Name == "" {
		errs = append(errs, "venue_a and venue_b names are required")
	}
	if c.VenueA.Name == c.VenueB.Name {
		errs = append(errs, "venue_a and venue_b must differ")
	}
	if c.VenueA.QuoteCurrency == "" || c.VenueB.QuoteCurrency == "" {
		errs = append(errs, "venue quote currencies are required")
	}

	if c.Trade.QuoteAmount <= 0 {
		errs = append(errs, "trade.quote_amount must be positive")
	}
	if c.Trade.TickInterval.Duration <= 0 {
		errs = append(errs, "trade.tick_interval must be positive")
	}

	if strings.ToLower(c.Mode) == "live" && c.FX.URL == "" {
		errs = append(errs, "live mode requires fx.url (a fixed fx rate is rejected at startup)")
	}
	if c.FX.URL == "" && c.FX.FixedRate <= 0 {
		errs = append(errs, "fx.fixed_rate must be positive when fx.url is unset")
	}
	if c.FX.TTL.Duration <= 0 {
		errs = append(errs, "fx.ttl must be positive")
	}

	if c.Calibration.Enabled {
		if c.Calibration.Percentile <= 0 || c.Calibration.Percentile >= 1 {
			errs = append(errs, "calibration.percentile must be in (0, 1)")
		}
		if c.Calibration.MinPassRate < 0 || c.Calibration.MinPassRate > 1 {
			errs = append(errs, "calibration.min_pass_rate must be in [0, 1]")
		}
	}

	if c.OBI.Enabled && c.OBI.TopLevels <= 0 {
		errs = append(errs, "obi.top_levels must be positive when obi is enabled")
	}

	if c.Watcher.Interval.Duration <= 0 {
		errs = append(errs, "watcher.interval must be positive")
	}
	if c.Watcher.WinrateCap <= 0 || c.Watcher.WinrateCap > 1 {
		errs = append(errs, "watcher.winrate_cap must be in (0, 1]")
	}

	if c.Sim.RejectProb < 0 || c.Sim.RejectProb > 1 {
		errs = append(errs, "sim.reject_prob must be in [0, 1]")
	}
	if c.Sim.PartialFillMinRatio < 0 || c.Sim.PartialFillMinRatio > 1 {
		errs = append(errs, "sim.partial_fill_min_ratio must be in [0, 1]")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres enabled but neither dsn nor host set")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3 enabled but bucket not set")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3 enabled but region not set")
		}
	}
	if c.Evidence.Dir == "" {
		errs = append(errs, "evidence.dir is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
