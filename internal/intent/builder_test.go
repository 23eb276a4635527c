package intent

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/minkyupark/arbpaper/internal/domain"
)

func testBuilder() *Builder {
	return NewBuilder(BuilderConfig{
		QuoteAmount: decimal.NewFromInt(1_000_000),
	}, slog.New(slog.DiscardHandler))
}

func profitableCandidate() *domain.Candidate {
	return &domain.Candidate{
		ID:         "cand-1",
		Symbol:     "BTC",
		VenueA:     "upbit",
		VenueB:     "binance",
		PriceA:     decimal.NewFromInt(90_000_000),
		PriceB:     decimal.NewFromInt(91_000_000),
		Direction:  domain.DirectionBuyASellB,
		Profitable: true,
	}
}

func TestBuild(t *testing.T) {
	b := testBuilder()

	t.Run("buy_a_sell_b", func(t *testing.T) {
		p, err := b.Build(profitableCandidate())
		require.NoError(t, err)
		require.NotNil(t, p)

		require.Equal(t, domain.SideBuy, p.Entry.Side)
		require.Equal(t, "upbit", p.Entry.Exchange)
		require.Equal(t, domain.QtyDirect, p.Entry.QtySource)
		require.True(t, p.Entry.QuoteAmount.Equal(decimal.NewFromInt(1_000_000)))

		require.Equal(t, domain.SideSell, p.Exit.Side)
		require.Equal(t, "binance", p.Exit.Exchange)
		require.Equal(t, domain.QtyFromEntryFill, p.Exit.QtySource)
		require.False(t, p.QtySynced)
	})

	t.Run("buy_b_sell_a_swaps_venues", func(t *testing.T) {
		c := profitableCandidate()
		c.Direction = domain.DirectionBuyBSellA
		p, err := b.Build(c)
		require.NoError(t, err)
		require.NotNil(t, p)
		require.Equal(t, "binance", p.Entry.Exchange)
		require.Equal(t, "upbit", p.Exit.Exchange)
	})

	t.Run("no_direction_builds_nothing", func(t *testing.T) {
		c := profitableCandidate()
		c.Direction = domain.DirectionNone
		p, err := b.Build(c)
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("unprofitable_builds_nothing", func(t *testing.T) {
		c := profitableCandidate()
		c.Profitable = false
		p, err := b.Build(c)
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("unprofitable_override", func(t *testing.T) {
		c := profitableCandidate()
		c.Profitable = false
		c.AllowUnprofitable = true
		p, err := b.Build(c)
		require.NoError(t, err)
		require.NotNil(t, p)
	})

	t.Run("exit_qty_is_provisional", func(t *testing.T) {
		p, err := b.Build(profitableCandidate())
		require.NoError(t, err)
		want := decimal.NewFromInt(1_000_000).Div(decimal.NewFromInt(90_000_000))
		require.True(t, p.Exit.BaseQty.Equal(want), "exit qty %s, want estimate %s", p.Exit.BaseQty, want)
	})
}

func TestSyncExitQty(t *testing.T) {
	b := testBuilder()
	p, err := b.Build(profitableCandidate())
	require.NoError(t, err)

	filled := decimal.NewFromFloat(0.01099)
	p.SyncExitQty(filled)

	require.True(t, p.QtySynced)
	require.True(t, p.Exit.BaseQty.Equal(filled))
	require.Equal(t, domain.QtyFromEntryFill, p.Exit.QtySource)
}

func TestValidateForExecution(t *testing.T) {
	b := testBuilder()

	t.Run("unsynced_pair_rejected", func(t *testing.T) {
		p, err := b.Build(profitableCandidate())
		require.NoError(t, err)
		err = ValidateForExecution(p)
		require.Error(t, err)
		require.True(t, errors.Is(err, domain.ErrMissingEntryFill))
	})

	t.Run("synced_pair_passes", func(t *testing.T) {
		p, err := b.Build(profitableCandidate())
		require.NoError(t, err)
		p.SyncExitQty(decimal.NewFromFloat(0.011))
		require.NoError(t, ValidateForExecution(p))
	})
}
