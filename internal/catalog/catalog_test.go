package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"quoteflow/models"
)

func TestMemoryUpsertIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	first, err := store.UpsertMarket(ctx, Market{
		Asset: "BTC", Venue: models.VenueBinance, Kind: models.KindSpot,
		NativeSymbol: "BTCUSDT", PriceScale: 2, QtyScale: 5, Status: "TRADABLE",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.UpsertMarket(ctx, Market{
		Asset: "BTC", Venue: models.VenueBinance, Kind: models.KindSpot,
		NativeSymbol: "BTCUSDT", PriceScale: 2, QtyScale: 5, Status: "TRADABLE",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "same (asset, venue, kind) keeps its row")

	other, err := store.UpsertMarket(ctx, Market{
		Asset: "BTC", Venue: models.VenueBinance, Kind: models.KindPerp,
		NativeSymbol: "BTCUSDT",
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID, "different kind is a different market")

	all, err := store.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMemoryScalesNeverDowngrade(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.UpsertMarket(ctx, Market{
		Asset: "ETH", Venue: models.VenueBybit, Kind: models.KindSpot,
		NativeSymbol: "ETHUSDT", PriceScale: 4, QtyScale: 6,
	})
	require.NoError(t, err)

	got, err := store.UpsertMarket(ctx, Market{
		Asset: "ETH", Venue: models.VenueBybit, Kind: models.KindSpot,
		NativeSymbol: "ETHUSDT", PriceScale: 2, QtyScale: 8,
	})
	require.NoError(t, err)
	require.Equal(t, 4, got.PriceScale, "lower price scale must not win")
	require.Equal(t, 8, got.QtyScale, "higher qty scale must win")
}

func TestMemoryFindAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	m, err := store.UpsertMarket(ctx, Market{
		Asset: "SOL", Venue: models.VenueGate, Kind: models.KindPerp,
		NativeSymbol: "SOL_USDT",
	})
	require.NoError(t, err)

	found, err := store.FindMarket(ctx, "SOL", models.VenueGate, models.KindPerp)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, m.ID, found.ID)

	missing, err := store.FindMarket(ctx, "SOL", models.VenueGate, models.KindSpot)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, store.UpsertMarketQuality(ctx, Quality{
		MarketID:  m.ID,
		Vol24hUSD: decimal.NewFromInt(7_000_000),
		Score:     0.9,
		AsOf:      time.Now().UTC(),
	}))
	_, ok := store.MarketQuality(m.ID)
	require.True(t, ok)

	require.NoError(t, store.DeleteMarket(ctx, m.ID))
	found, err = store.FindMarket(ctx, "SOL", models.VenueGate, models.KindPerp)
	require.NoError(t, err)
	require.Nil(t, found)
	_, ok = store.MarketQuality(m.ID)
	require.False(t, ok, "quality rows go with the market")
}
