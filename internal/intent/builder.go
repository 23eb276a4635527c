// Package intent converts profitable candidates into atomic buy/sell order
// intent pairs and enforces the exit-quantity sync contract.
package intent

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// BuilderConfig configures intent sizing.
type BuilderConfig struct {
	// QuoteAmount is the settlement-currency notional of the entry leg.
	QuoteAmount decimal.Decimal
}

// Builder builds intent pairs from candidates.
type Builder struct {
	cfg    BuilderConfig
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(cfg BuilderConfig, logger *slog.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "intent_builder")),
	}
}

// Build produces exactly two opposite-side market intents for a profitable
// candidate: a BUY on the cheaper venue sized in quote currency and a SELL
// on the other venue whose quantity is a placeholder until synced from the
// entry fill. Non-profitable candidates produce nothing unless the
// allow_unprofitable override is set; candidates without a direction never
// produce intents.
func (b *Builder) Build(c *domain.Candidate) (*domain.IntentPair, error) {
	if c.Direction == domain.DirectionNone {
		return nil, nil
	}
	if !c.Profitable && !c.AllowUnprofitable {
		return nil, nil
	}

	var buyVenue, sellVenue string
	var buyPrice decimal.Decimal
	switch c.Direction {
	case domain.DirectionBuyASellB:
		buyVenue, sellVenue = c.VenueA, c.VenueB
		buyPrice = c.PriceA
	case domain.DirectionBuyBSellA:
		buyVenue, sellVenue = c.VenueB, c.VenueA
		buyPrice = c.PriceB
	}
	if !buyPrice.IsPositive() {
		return nil, fmt.Errorf("intent: candidate %s: non-positive entry price", c.ID)
	}

	now := time.Now().UTC()
	entry := domain.OrderIntent{
		ID:          uuid.New().String(),
		CandidateID: c.ID,
		Exchange:    buyVenue,
		Symbol:      c.Symbol,
		Side:        domain.SideBuy,
		Type:        domain.IntentMarket,
		QuoteAmount: b.cfg.QuoteAmount,
		QtySource:   domain.QtyDirect,
		CreatedAt:   now,
	}
	exit := domain.OrderIntent{
		ID:          uuid.New().String(),
		CandidateID: c.ID,
		Exchange:    sellVenue,
		Symbol:      c.Symbol,
		Side:        domain.SideSell,
		Type:        domain.IntentMarket,
		// Provisional estimate only; overwritten by SyncExitQty.
		BaseQty:   b.cfg.QuoteAmount.Div(buyPrice),
		QtySource: domain.QtyFromEntryFill,
		CreatedAt: now,
	}

	b.logger.Debug("intent pair built",
		slog.String("candidate_id", c.ID),
		slog.String("symbol", c.Symbol),
		slog.String("buy_venue", buyVenue),
		slog.String("sell_venue", sellVenue),
	)
	return &domain.IntentPair{CandidateID: c.ID, Entry: entry, Exit: exit}, nil
}

// ValidateForExecution enforces the qty-sync contract: an exit leg marked
// from_entry_fill may not be executed before SyncExitQty has run.
func ValidateForExecution(p *domain.IntentPair) error {
	if p.Exit.QtySource == domain.QtyFromEntryFill && !p.QtySynced {
		return fmt.Errorf("intent: pair %s: %w", p.CandidateID, domain.ErrMissingEntryFill)
	}
	if !p.QtySynced {
		return fmt.Errorf("intent: pair %s: %w", p.CandidateID, domain.ErrMissingEntryFill)
	}
	return nil
}
