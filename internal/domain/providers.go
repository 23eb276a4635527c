package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is the narrow interface the engine needs from a venue's data
// API. Both methods may return recoverable failures (counted as rejects,
// never fatal to the run).
type MarketData interface {
	Exchange() string
	QuoteCurrency() string
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetOrderbook(ctx context.Context, symbol string, depth int) (OrderbookSnapshot, error)
}

// FXProvider supplies the conversion rate into the settlement currency.
// A provider that is not live (fixed rate) must be rejected at startup when
// the run mode is live.
type FXProvider interface {
	GetFXRate(ctx context.Context, from, to string) (decimal.Decimal, time.Time, error)
	IsLive() bool
}

// LedgerCounts is the persisted row tally used to verify the insert-count
// invariant after a run.
type LedgerCounts struct {
	Orders int64
	Fills  int64
	Trades int64
}

// Ledger persists orders, fills, and completed trades. The engine treats it
// as fire-and-forget: failures degrade a db_integrity flag, never the loop.
type Ledger interface {
	RecordOrderAndFill(ctx context.Context, intent OrderIntent, fill FillResult) error
	RecordTradeComplete(ctx context.Context, trade TradeResult) error
	GetCounts(ctx context.Context) (LedgerCounts, error)
}

// ControlStore persists ControlState across processes so the admin CLI and
// the engine observe the same mode and blacklist.
type ControlStore interface {
	Get(ctx context.Context) (ControlState, error)
	Set(ctx context.Context, state ControlState) error
}

// AuditStore persists the append-only admin audit trail.
type AuditStore interface {
	Append(ctx context.Context, rec AuditRecord) error
	List(ctx context.Context, limit int) ([]AuditRecord, error)
}
