package bitget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

func TestSubscribeFrames(t *testing.T) {
	spot := NewSpotCodec("")
	frames, err := spot.SubscribeFrames([]string{"BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.JSONEq(t, `{"op":"subscribe","args":[{"instType":"SPOT","channel":"ticker","instId":"BTCUSDT"}]}`, string(frames[0]))

	perp := NewPerpCodec("")
	frames, err = perp.SubscribeFrames([]string{"ETHUSDT"})
	require.NoError(t, err)
	require.JSONEq(t, `{"op":"subscribe","args":[{"instType":"USDT-FUTURES","channel":"ticker","instId":"ETHUSDT"}]}`, string(frames[0]))
}

func TestDecodeTicker(t *testing.T) {
	c := NewSpotCodec("")
	frame := `{"action":"snapshot","arg":{"instType":"SPOT","channel":"ticker","instId":"BTCUSDT"},"data":[{"instId":"BTCUSDT","bidPr":"60000","askPr":"60002"}],"ts":1718000000123}`

	tick, err := c.Decode(websocket.TextMessage, []byte(frame))
	require.NoError(t, err)
	require.NotNil(t, tick)
	require.Equal(t, "BTC", tick.Asset)
	require.Equal(t, models.VenueBitget, tick.Venue)
	require.Equal(t, "60001", tick.Mid.String())
	require.EqualValues(t, 1718000000123, tick.TS.UnixMilli())
}

func TestDecodeNoise(t *testing.T) {
	c := NewSpotCodec("")
	for _, frame := range []string{
		"pong",
		`{"event":"subscribe","arg":{"channel":"ticker"}}`,
		`{"arg":{"channel":"candle1m"},"data":[{"instId":"BTCUSDT"}]}`,
	} {
		tick, err := c.Decode(websocket.TextMessage, []byte(frame))
		require.NoError(t, err, frame)
		require.Nil(t, tick, frame)
	}
}

func TestDecodeWrongQuote(t *testing.T) {
	c := NewSpotCodec("")
	frame := `{"arg":{"channel":"ticker"},"data":[{"instId":"ETHBTC","bidPr":"0.05","askPr":"0.051"}]}`
	_, err := c.Decode(websocket.TextMessage, []byte(frame))
	require.True(t, errors.Is(err, symbols.ErrQuoteSuffix))
}

func TestDiscoveryAndStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/spot/public/symbols":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{
					{"symbol": "BTCUSDT", "status": "online", "baseCoin": "BTC", "quoteCoin": "USDT", "pricePrecision": "2", "quantityPrecision": "4"},
					{"symbol": "OLDUSDT", "status": "offline", "baseCoin": "OLD", "quoteCoin": "USDT"},
				},
			})
		case "/api/v2/spot/market/tickers":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{
					{"symbol": "BTCUSDT", "usdtVolume": "5000000"},
				},
			})
		}
	}))
	defer srv.Close()

	d := NewDiscovery(fetch.NewClient(), srv.URL)
	listings, err := d.ListSpotUSDT(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, 2, listings[0].PriceScale)
	require.Equal(t, 4, listings[0].QtyScale)

	s := NewStats(fetch.NewClient(), srv.URL)
	ref := listings[0].Ref()
	stats, err := s.Fetch(context.Background(), []models.MarketRef{ref})
	require.NoError(t, err)
	require.Equal(t, "5000000", stats[ref].Vol24hUSD.String())
}
