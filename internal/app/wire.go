package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	s3blob "github.com/minkyupark/arbpaper/internal/blob/s3"
	"github.com/minkyupark/arbpaper/internal/config"
	"github.com/minkyupark/arbpaper/internal/control"
	"github.com/minkyupark/arbpaper/internal/detect"
	"github.com/minkyupark/arbpaper/internal/domain"
	"github.com/minkyupark/arbpaper/internal/evidence"
	"github.com/minkyupark/arbpaper/internal/exchange"
	"github.com/minkyupark/arbpaper/internal/execmodel"
	"github.com/minkyupark/arbpaper/internal/fx"
	"github.com/minkyupark/arbpaper/internal/intent"
	"github.com/minkyupark/arbpaper/internal/ledger"
	"github.com/minkyupark/arbpaper/internal/metrics"
	"github.com/minkyupark/arbpaper/internal/sim"
	"github.com/minkyupark/arbpaper/internal/source"
	"github.com/minkyupark/arbpaper/internal/store/postgres"
	"github.com/minkyupark/arbpaper/internal/store/redisctl"
)

// Dependencies bundles everything the engine needs to run one paper session.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	KPI      *metrics.PaperMetrics
	Source   source.OpportunitySource
	PairSrc  *source.PairSource // nil in mock mode
	Builder  *intent.Builder
	Executor *sim.Executor
	WeldCfg  sim.WeldConfig
	Maker    *execmodel.MakerModel

	Ledger       *ledger.Recorder
	ControlStore domain.ControlStore
	AuditStore   domain.AuditStore
	Control      *control.Manager

	Evidence *evidence.Dir
	Uploader *s3blob.Uploader // nil unless S3 is enabled

	// Venues by exchange name, used for welding-time book lookups.
	// Empty in mock mode.
	Venues map[string]domain.MarketData
	// Binance is non-nil in live mode; its stream loop must be run.
	Binance *exchange.Binance

	Fingerprint string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Evidence directory and config fingerprint ---
	ev, err := evidence.NewDir(cfg.Evidence.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: evidence dir: %w", err)
	}
	deps.Evidence = ev

	fp, err := evidence.ConfigFingerprint(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: config fingerprint: %w", err)
	}
	deps.Fingerprint = fp

	// --- KPI accumulator ---
	deps.KPI = metrics.New(time.Now())

	// --- Fee structures and break-even parameters ---
	feeA := domain.FeeStructure{
		Exchange:    cfg.VenueA.Name,
		MakerFeeBps: decimal.NewFromFloat(cfg.VenueA.MakerFeeBps),
		TakerFeeBps: decimal.NewFromFloat(cfg.VenueA.TakerFeeBps),
	}
	feeB := domain.FeeStructure{
		Exchange:    cfg.VenueB.Name,
		MakerFeeBps: decimal.NewFromFloat(cfg.VenueB.MakerFeeBps),
		TakerFeeBps: decimal.NewFromFloat(cfg.VenueB.TakerFeeBps),
	}
	fees := map[string]domain.FeeStructure{
		cfg.VenueA.Name: feeA,
		cfg.VenueB.Name: feeB,
	}

	detector := detect.NewDetector(detect.DetectorConfig{
		VenueA: cfg.VenueA.Name,
		VenueB: cfg.VenueB.Name,
		BreakEven: domain.BreakEvenParams{
			Entry:       feeA,
			Exit:        feeB,
			SlippageBps: decimal.NewFromFloat(cfg.Detect.SlippageBps),
			LatencyBps:  decimal.NewFromFloat(cfg.Detect.LatencyBps),
			BufferBps:   decimal.NewFromFloat(cfg.Detect.BufferBps),
		},
		DriftBps: decimal.NewFromFloat(cfg.Detect.DriftBps),
	}, logger)

	costs := execmodel.NewCostModel(execmodel.CostConfig{
		SpreadCostBps:         decimal.NewFromFloat(cfg.ExecCost.SpreadCostBps),
		SlippageAlpha:         decimal.NewFromFloat(cfg.ExecCost.SlippageAlpha),
		SlippageCapBps:        decimal.NewFromFloat(cfg.ExecCost.SlippageCapBps),
		DefaultSlippageBps:    decimal.NewFromFloat(cfg.ExecCost.DefaultSlippageBps),
		PartialFillPenaltyBps: decimal.NewFromFloat(cfg.ExecCost.PartialFillPenaltyBps),
		SafeSizeRatio:         decimal.NewFromFloat(cfg.ExecCost.SafeSizeRatio),
	})

	makerCfg := execmodel.DefaultMakerConfig()
	makerCfg.BaseFillProb = decimal.NewFromFloat(cfg.Maker.BaseProb)
	makerCfg.MinFillProb = decimal.NewFromFloat(cfg.Maker.MinProb)
	makerCfg.MaxFillProb = decimal.NewFromFloat(cfg.Maker.MaxProb)
	deps.Maker = execmodel.NewMakerModel(makerCfg)

	quoteAmount := decimal.NewFromFloat(cfg.Trade.QuoteAmount)

	// --- Opportunity source ---
	switch strings.ToLower(cfg.Mode) {
	case "mock":
		deps.Source = source.NewMockSource(source.MockConfig{
			Symbols:            cfg.Symbols,
			BasePrice:          cfg.Mock.BasePrices,
			ProfitableFraction: cfg.Mock.ProfitableFraction,
			MaxSpreadBps:       cfg.Mock.MaxSpreadBps,
			Notional:           quoteAmount,
			Seed:               cfg.Mock.Seed,
		}, detector, costs, deps.KPI, logger)

		// Welding-time books come from a seeded mock venue pair, so the
		// spread-cost friction is exercised offline too. Both venues quote
		// in the source's price unit.
		mockA := exchange.NewMock(exchange.MockConfig{
			Exchange:      cfg.VenueA.Name,
			QuoteCurrency: cfg.VenueA.QuoteCurrency,
			BasePrice:     cfg.Mock.BasePrices,
			SpreadBps:     cfg.Mock.SpreadBps,
			WalkBps:       cfg.Mock.WalkBps,
			Seed:          cfg.Mock.Seed,
		})
		mockB := exchange.NewMock(exchange.MockConfig{
			Exchange:      cfg.VenueB.Name,
			QuoteCurrency: cfg.VenueA.QuoteCurrency,
			BasePrice:     cfg.Mock.BasePrices,
			SpreadBps:     cfg.Mock.SpreadBps,
			WalkBps:       cfg.Mock.WalkBps,
			Seed:          cfg.Mock.Seed + 1,
		})
		deps.Venues = map[string]domain.MarketData{
			mockA.Exchange(): mockA,
			mockB.Exchange(): mockB,
		}

	case "live":
		upbit := exchange.NewUpbit(exchange.UpbitConfig{
			BaseURL: cfg.VenueA.BaseURL,
			Timeout: cfg.FX.Timeout.Duration,
		})
		binance := exchange.NewBinance(exchange.BinanceConfig{
			BaseURL: cfg.VenueB.BaseURL,
			WSURL:   cfg.VenueB.WSURL,
			Timeout: cfg.FX.Timeout.Duration,
			Symbols: cfg.Symbols,
		}, logger)
		deps.Binance = binance
		deps.Venues = map[string]domain.MarketData{
			upbit.Exchange():   upbit,
			binance.Exchange(): binance,
		}

		var fxp domain.FXProvider
		if cfg.FX.URL != "" {
			fxp = fx.NewHTTPProvider(fx.HTTPConfig{
				URL:             cfg.FX.URL,
				RefreshInterval: cfg.FX.RefreshInterval.Duration,
				Timeout:         cfg.FX.Timeout.Duration,
			}, logger)
		} else {
			fxp = fx.NewFixedProvider(decimal.NewFromFloat(cfg.FX.FixedRate))
		}
		// A fixed rate is never acceptable against live venues, even when
		// both quote in the same currency.
		if err := fx.RequireLive(fxp, cfg.Mode); err != nil {
			return nil, nil, fmt.Errorf("wire: fx: %w", err)
		}

		pairSrc := source.NewPairSource(source.PairConfig{
			Symbols:   cfg.Symbols,
			FXTTL:     cfg.FX.TTL.Duration,
			FXFrom:    "USD",
			FXTo:      "KRW",
			BookDepth: cfg.Trade.BookDepth,
			Notional:  quoteAmount,
			OBI: detect.OBIConfig{
				Enabled:   cfg.OBI.Enabled,
				TopLevels: cfg.OBI.TopLevels,
				Threshold: decimal.NewFromFloat(cfg.OBI.Threshold),
				TopK:      cfg.OBI.TopK,
			},
			Calibration: cfg.Calibration.Enabled,
			CalibratorConfig: detect.CalibratorConfig{
				Warmup:      cfg.Calibration.Warmup.Duration,
				Percentile:  cfg.Calibration.Percentile,
				MinEdgeBps:  decimal.NewFromFloat(cfg.Calibration.MinEdgeBps),
				MinPassRate: cfg.Calibration.MinPassRate,
				MinSamples:  cfg.Calibration.MinSamples,
			},
			RatePerSecond: cfg.RateLimit.PerSecond,
			Burst:         cfg.RateLimit.Burst,
		}, upbit, binance, fxp, detector, costs, deps.KPI, logger)
		deps.Source = pairSrc
		deps.PairSrc = pairSrc

	default:
		return nil, nil, fmt.Errorf("wire: unsupported mode %q", cfg.Mode)
	}

	// --- Intent builder and simulated executor ---
	deps.Builder = intent.NewBuilder(intent.BuilderConfig{QuoteAmount: quoteAmount}, logger)
	deps.Executor = sim.NewExecutor(sim.FillConfig{
		SlippageBps:         decimal.NewFromFloat(cfg.Sim.SlippageBps),
		LatencyBps:          decimal.NewFromFloat(cfg.Sim.LatencyBps),
		LatencyMsBase:       cfg.Sim.LatencyMsBase,
		LatencyMsJitter:     cfg.Sim.LatencyMsJitter,
		PartialFillProb:     cfg.Sim.PartialFillProb,
		PartialFillMinRatio: cfg.Sim.PartialFillMinRatio,
		AdverseProb:         cfg.Sim.AdverseProb,
		AdverseExtraBps:     decimal.NewFromFloat(cfg.Sim.AdverseExtraBps),
		RejectProb:          cfg.Sim.RejectProb,
		Seed:                cfg.Sim.Seed,
	}, fees, logger)
	deps.WeldCfg = sim.WeldConfig{
		PartialFillPenaltyBps: decimal.NewFromFloat(cfg.ExecCost.PartialFillPenaltyBps),
	}

	// --- PostgreSQL ledger ---
	var ledgerStore domain.Ledger
	var pgAudit domain.AuditStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		ledgerStore = postgres.NewLedgerStore(pgClient.Pool())
		pgAudit = postgres.NewAuditStore(pgClient.Pool())
	}
	deps.Ledger = ledger.NewRecorder(ledgerStore, deps.KPI, logger)

	// --- Control store: Redis when configured, in-process otherwise ---
	mem := control.NewMemStore()
	deps.ControlStore = mem
	deps.AuditStore = mem
	if cfg.Redis.Enabled {
		ctl, err := redisctl.New(ctx, redisctl.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = ctl.Close() })
		deps.ControlStore = ctl
	}
	if pgAudit != nil {
		deps.AuditStore = pgAudit
	}
	deps.Control = control.NewManager(deps.ControlStore, deps.AuditStore, logger)

	// --- S3 evidence archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Uploader = s3blob.NewUploader(s3Client, logger)
	}

	return deps, cleanup, nil
}
