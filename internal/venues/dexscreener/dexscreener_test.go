package dexscreener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quoteflow/internal/fetch"
	"quoteflow/logger"
	"quoteflow/models"
)

func pairPayload(liq, vol float64, createdAt int64) map[string]interface{} {
	return map[string]interface{}{
		"chainId":       "solana",
		"pairAddress":   "So1Pair111",
		"baseToken":     map[string]string{"symbol": "SOL"},
		"quoteToken":    map[string]string{"symbol": "USDT"},
		"priceUsd":      "150.25",
		"liquidity":     map[string]float64{"usd": liq},
		"volume":        map[string]float64{"h24": vol},
		"pairCreatedAt": createdAt,
		"updatedAt":     time.Now().UnixMilli(),
	}
}

func TestDiscoveryFiltersNoise(t *testing.T) {
	weekOld := time.Now().Add(-7 * 24 * time.Hour).UnixMilli()
	fresh := time.Now().Add(-time.Hour).UnixMilli()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/latest/dex/search", r.URL.Path)
		require.Equal(t, "SOL/USDT", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []map[string]interface{}{
				pairPayload(500_000, 80_000, weekOld), // qualifies
				pairPayload(10_000, 80_000, weekOld),  // thin liquidity
				pairPayload(500_000, 1_000, weekOld),  // thin volume
				pairPayload(500_000, 80_000, fresh),   // too young
			},
		})
	}))
	defer srv.Close()

	d := NewDiscovery(fetch.NewClient(), srv.URL, []string{"SOL"}, 100_000, 20_000, 24*time.Hour, logger.Logger())
	listings, err := d.ListSpotUSDT(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, "solana:So1Pair111", listings[0].NativeSymbol)
	require.Equal(t, models.KindDex, listings[0].Kind)
	require.Equal(t, "SOL", listings[0].Base)

	perp, err := d.ListPerpUSDT(context.Background())
	require.NoError(t, err)
	require.Empty(t, perp)
}

func TestStatsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/latest/dex/pairs/solana/So1Pair111", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []map[string]interface{}{pairPayload(500_000, 80_000, 0)},
		})
	}))
	defer srv.Close()

	s := NewStats(fetch.NewClient(), srv.URL)
	ref := models.MarketRef{Asset: "SOL", Venue: models.VenueDexscreener, Kind: models.KindDex, NativeSymbol: "solana:So1Pair111"}

	stats, err := s.Fetch(context.Background(), []models.MarketRef{ref})
	require.NoError(t, err)
	require.Equal(t, "80000", stats[ref].Vol24hUSD.String())
	require.True(t, stats[ref].LiquidityUSD.Valid)
	require.Equal(t, "500000", stats[ref].LiquidityUSD.Decimal.String())
}

type tickSink struct {
	mu    sync.Mutex
	ticks []models.Tick
}

func (s *tickSink) OnTick(t models.Tick) {
	s.mu.Lock()
	s.ticks = append(s.ticks, t)
	s.mu.Unlock()
}

func (s *tickSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func (s *tickSink) first() models.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks[0]
}

func TestPollerEmitsMidOnlyTicks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []map[string]interface{}{pairPayload(500_000, 80_000, 0)},
		})
	}))
	defer srv.Close()

	p := NewPoller(fetch.NewClient(), srv.URL, 50*time.Millisecond, 6000, logger.Logger())
	defer p.Close()

	sink := &tickSink{}
	sub, err := p.SubscribeBookTicker([]string{"solana:So1Pair111"}, sink)
	require.NoError(t, err)
	defer sub.Close()

	deadline := time.Now().Add(3 * time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.GreaterOrEqual(t, sink.count(), 2, "poller should emit repeatedly")

	tick := sink.first()
	require.Equal(t, "SOL", tick.Asset)
	require.Equal(t, models.KindDex, tick.Kind)
	require.Equal(t, "150.25", tick.Mid.String())
	require.True(t, tick.Bid.Valid)
	require.True(t, tick.Ask.Valid)
	require.True(t, tick.Bid.Decimal.Equal(tick.Mid), "bid collapses to mid")
}

func TestPollerRejectsBadPool(t *testing.T) {
	p := NewPoller(fetch.NewClient(), "http://unused", time.Second, 300, logger.Logger())
	defer p.Close()

	_, err := p.SubscribeBookTicker([]string{"missing-separator"}, &tickSink{})
	require.Error(t, err)
}
