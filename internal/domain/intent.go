package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether this is a buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// IntentType is the order type requested for an intent.
type IntentType string

const (
	IntentMarket IntentType = "market"
	IntentLimit  IntentType = "limit"
)

// QtySource records where an intent's size comes from. A sell intent built
// from a candidate starts as QtyFromEntryFill and must have its BaseQty
// rewritten to the entry leg's actual filled quantity before execution.
type QtySource string

const (
	QtyDirect        QtySource = "direct"
	QtyFromEntryFill QtySource = "from_entry_fill"
)

// OrderIntent is one half of an intent pair. By contract a market buy is
// sized in quote currency (QuoteAmount) and a sell in base units (BaseQty);
// exactly one of the two is meaningful per intent.
type OrderIntent struct {
	ID          string
	CandidateID string
	Exchange    string
	Symbol      string
	Side        Side
	Type        IntentType
	QuoteAmount decimal.Decimal
	BaseQty     decimal.Decimal
	LimitPrice  *decimal.Decimal
	QtySource   QtySource
	CreatedAt   time.Time
}

// IntentPair is the atomic buy/sell pair built from one profitable candidate.
// Entry is always the buy leg on the cheaper venue.
type IntentPair struct {
	CandidateID string
	Entry       OrderIntent
	Exit        OrderIntent
	QtySynced   bool
}

// SyncExitQty rewrites the exit leg's base quantity to the entry leg's
// filled quantity. Must be called before the exit leg is executed.
func (p *IntentPair) SyncExitQty(filledQty decimal.Decimal) {
	p.Exit.BaseQty = filledQty
	p.Exit.QtySource = QtyFromEntryFill
	p.QtySynced = true
}
