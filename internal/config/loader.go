package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBPAPER_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus env overrides only. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBPAPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	setStr(&cfg.VenueA.BaseURL, "ARBPAPER_VENUE_A_BASE_URL")
	setStr(&cfg.VenueB.BaseURL, "ARBPAPER_VENUE_B_BASE_URL")
	setStr(&cfg.VenueB.WSURL, "ARBPAPER_VENUE_B_WS_URL")
	setStringSlice(&cfg.Symbols, "ARBPAPER_SYMBOLS")

	// ── FX ──
	setStr(&cfg.FX.URL, "ARBPAPER_FX_URL")
	setFloat64(&cfg.FX.FixedRate, "ARBPAPER_FX_FIXED_RATE")
	setDuration(&cfg.FX.RefreshInterval, "ARBPAPER_FX_REFRESH_INTERVAL")
	setDuration(&cfg.FX.TTL, "ARBPAPER_FX_TTL")

	// ── Trade ──
	setFloat64(&cfg.Trade.QuoteAmount, "ARBPAPER_TRADE_QUOTE_AMOUNT")
	setDuration(&cfg.Trade.TickInterval, "ARBPAPER_TRADE_TICK_INTERVAL")
	setInt(&cfg.Trade.MaxIterations, "ARBPAPER_TRADE_MAX_ITERATIONS")

	// ── Sim ──
	setInt64(&cfg.Sim.Seed, "ARBPAPER_SIM_SEED")
	setFloat64(&cfg.Sim.RejectProb, "ARBPAPER_SIM_REJECT_PROB")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBPAPER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBPAPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBPAPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBPAPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBPAPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBPAPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBPAPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBPAPER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBPAPER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBPAPER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBPAPER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBPAPER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBPAPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBPAPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBPAPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBPAPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBPAPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBPAPER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBPAPER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBPAPER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBPAPER_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBPAPER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBPAPER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBPAPER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBPAPER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBPAPER_S3_FORCE_PATH_STYLE")

	// ── Evidence ──
	setStr(&cfg.Evidence.Dir, "ARBPAPER_EVIDENCE_DIR")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBPAPER_MODE")
	setStr(&cfg.LogLevel, "ARBPAPER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
