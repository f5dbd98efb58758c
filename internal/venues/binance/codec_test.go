package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

func TestCodecURL(t *testing.T) {
	c := NewSpotCodec("")
	url := c.URL([]string{"BTCUSDT", "ETHUSDT"})
	require.Equal(t, SpotWSURL+"?streams=btcusdt@bookTicker/ethusdt@bookTicker", url)

	frames, err := c.SubscribeFrames([]string{"BTCUSDT"})
	require.NoError(t, err)
	require.Empty(t, frames, "combined stream URL carries the subscription")
}

func TestDecodeCombinedFrame(t *testing.T) {
	c := NewSpotCodec("")
	frame := `{"stream":"btcusdt@bookTicker","data":{"u":400900217,"s":"BTCUSDT","b":"60123.40","B":"31.2","a":"60123.60","A":"40.1","E":1718000000123}}`

	tick, err := c.Decode(websocket.TextMessage, []byte(frame))
	require.NoError(t, err)
	require.NotNil(t, tick)
	require.Equal(t, "BTC", tick.Asset)
	require.Equal(t, models.VenueBinance, tick.Venue)
	require.Equal(t, models.KindSpot, tick.Kind)
	require.Equal(t, "BTCUSDT", tick.NativeSymbol)
	require.Equal(t, "60123.5", tick.Mid.String())
	require.EqualValues(t, 1718000000123, tick.TS.UnixMilli())
}

func TestDecodeRawFrame(t *testing.T) {
	c := NewPerpCodec("")
	frame := `{"s":"ETHUSDT","b":"3000","a":"3001","E":1718000000000}`

	tick, err := c.Decode(websocket.TextMessage, []byte(frame))
	require.NoError(t, err)
	require.NotNil(t, tick)
	require.Equal(t, models.KindPerp, tick.Kind)
	require.Equal(t, "3000.5", tick.Mid.String())
}

func TestDecodeNoise(t *testing.T) {
	c := NewSpotCodec("")
	for _, frame := range []string{
		`{"result":null,"id":1}`,
		`not json`,
		`{"s":"BTCUSDT","b":"0","a":"0"}`,
	} {
		tick, err := c.Decode(websocket.TextMessage, []byte(frame))
		require.NoError(t, err, frame)
		require.Nil(t, tick, frame)
	}
}

func TestDecodeWrongQuote(t *testing.T) {
	c := NewSpotCodec("")
	_, err := c.Decode(websocket.TextMessage, []byte(`{"s":"ETHBTC","b":"0.05","a":"0.051"}`))
	require.True(t, errors.Is(err, symbols.ErrQuoteSuffix))
}

func TestDiscoveryListSpotUSDT(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbols": []map[string]interface{}{
				{
					"symbol": "BTCUSDT", "status": "TRADING", "baseAsset": "BTC", "quoteAsset": "USDT",
					"filters": []map[string]string{
						{"filterType": "PRICE_FILTER", "tickSize": "0.01000000"},
						{"filterType": "LOT_SIZE", "stepSize": "0.00001000"},
					},
				},
				{"symbol": "ETHBTC", "status": "TRADING", "baseAsset": "ETH", "quoteAsset": "BTC"},
				{"symbol": "XYZUSDT", "status": "BREAK", "baseAsset": "XYZ", "quoteAsset": "USDT"},
			},
		})
	}))
	defer srv.Close()

	d := NewDiscovery(fetch.NewClient(), srv.URL, srv.URL)
	listings, err := d.ListSpotUSDT(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, "BTCUSDT", listings[0].NativeSymbol)
	require.Equal(t, "BTC", listings[0].Base)
	require.Equal(t, 2, listings[0].PriceScale)
	require.Equal(t, 5, listings[0].QtyScale)
}

func TestStatsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tickers []map[string]string
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v3"):
			tickers = []map[string]string{{"symbol": "BTCUSDT", "quoteVolume": "1500000.5"}}
		case strings.HasPrefix(r.URL.Path, "/fapi/v1"):
			tickers = []map[string]string{{"symbol": "BTCUSDT", "quoteVolume": "9000000"}}
		}
		json.NewEncoder(w).Encode(tickers)
	}))
	defer srv.Close()

	s := NewStats(fetch.NewClient(), srv.URL, srv.URL)
	spotRef := models.MarketRef{Asset: "BTC", Venue: models.VenueBinance, Kind: models.KindSpot, NativeSymbol: "BTCUSDT"}
	perpRef := models.MarketRef{Asset: "BTC", Venue: models.VenueBinance, Kind: models.KindPerp, NativeSymbol: "BTCUSDT"}
	missing := models.MarketRef{Asset: "XYZ", Venue: models.VenueBinance, Kind: models.KindSpot, NativeSymbol: "XYZUSDT"}

	stats, err := s.Fetch(context.Background(), []models.MarketRef{spotRef, perpRef, missing})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, "1500000.5", stats[spotRef].Vol24hUSD.String())
	require.Equal(t, "9000000", stats[perpRef].Vol24hUSD.String())
	_, ok := stats[missing]
	require.False(t, ok, "refs without a ticker stay absent")
}
