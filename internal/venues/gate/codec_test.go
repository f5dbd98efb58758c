package gate

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
	c := NewSpotCodec("")
	frames, err := c.SubscribeFrames([]string{"BTC_USDT", "ETH_USDT"})
	require.NoError(t, err)
	require.Len(t, frames, 1)

	var req struct {
		Time    int64    `json:"time"`
		Channel string   `json:"channel"`
		Event   string   `json:"event"`
		Payload []string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &req))
	require.Equal(t, "spot.book_ticker", req.Channel)
	require.Equal(t, "subscribe", req.Event)
	require.Equal(t, []string{"BTC_USDT", "ETH_USDT"}, req.Payload)
	require.Positive(t, req.Time)

	require.Equal(t, "futures.book_ticker", NewPerpCodec("").channel)
}

func TestDecodeSpotUpdate(t *testing.T) {
	c := NewSpotCodec("")
	// The quantity keys "B" and "A" must not clobber the prices.
	frame := `{"time":1718000000,"channel":"spot.book_ticker","event":"update","result":{"t":1718000000123,"s":"BTC_USDT","b":"60000","B":"1.5","a":"60002","A":"3"}}`

	tick, err := c.Decode(websocket.TextMessage, []byte(frame))
	require.NoError(t, err)
	require.NotNil(t, tick)
	require.Equal(t, "BTC", tick.Asset)
	require.Equal(t, "BTC_USDT", tick.NativeSymbol)
	require.Equal(t, "60000", tick.Bid.Decimal.String())
	require.Equal(t, "60002", tick.Ask.Decimal.String())
	require.Equal(t, "60001", tick.Mid.String())
	require.EqualValues(t, 1718000000123, tick.TS.UnixMilli())
}

func TestDecodeSecondsTimestamp(t *testing.T) {
	c := NewSpotCodec("")
	frame := `{"channel":"spot.book_ticker","event":"update","result":{"t":1718000000,"s":"ETH_USDT","b":"3000","a":"3002"}}`

	tick, err := c.Decode(websocket.TextMessage, []byte(frame))
	require.NoError(t, err)
	require.NotNil(t, tick)
	require.EqualValues(t, 1718000000, tick.TS.Unix())
}

func TestDecodeNoise(t *testing.T) {
	c := NewSpotCodec("")
	for _, frame := range []string{
		`{"channel":"spot.book_ticker","event":"subscribe","result":{"status":"success"}}`,
		`{"channel":"spot.trades","event":"update","result":{"s":"BTC_USDT"}}`,
		`not json`,
	} {
		tick, err := c.Decode(websocket.TextMessage, []byte(frame))
		require.NoError(t, err, frame)
		require.Nil(t, tick, frame)
	}
}

func TestDecodeWrongQuote(t *testing.T) {
	c := NewSpotCodec("")
	frame := `{"channel":"spot.book_ticker","event":"update","result":{"s":"ETH_BTC","b":"0.05","a":"0.051"}}`
	_, err := c.Decode(websocket.TextMessage, []byte(frame))
	require.True(t, errors.Is(err, symbols.ErrQuoteSuffix))
}

func TestDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/spot/currency_pairs":
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "BTC_USDT", "base": "BTC", "quote": "USDT", "trade_status": "tradable", "precision": 2, "amount_precision": 4},
				{"id": "ETH_BTC", "base": "ETH", "quote": "BTC", "trade_status": "tradable"},
				{"id": "OLD_USDT", "base": "OLD", "quote": "USDT", "trade_status": "untradable"},
			})
		case "/api/v4/futures/usdt/contracts":
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"name": "BTC_USDT", "order_price_round": "0.1", "order_size_round": "1"},
				{"name": "DEAD_USDT", "order_price_round": "0.01", "in_delisting": true},
			})
		}
	}))
	defer srv.Close()

	d := NewDiscovery(fetch.NewClient(), srv.URL)

	spot, err := d.ListSpotUSDT(context.Background())
	require.NoError(t, err)
	require.Len(t, spot, 1)
	require.Equal(t, "BTC_USDT", spot[0].NativeSymbol)
	require.Equal(t, 2, spot[0].PriceScale)

	perp, err := d.ListPerpUSDT(context.Background())
	require.NoError(t, err)
	require.Len(t, perp, 2)
	require.Equal(t, "BTC_USDT", perp[0].NativeSymbol)
	require.Equal(t, 1, perp[0].PriceScale)
	require.Equal(t, "UNTRADABLE", perp[1].Status)
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/spot/tickers":
			json.NewEncoder(w).Encode([]map[string]string{
				{"currency_pair": "BTC_USDT", "quote_volume": "1000000"},
			})
		case "/api/v4/futures/usdt/tickers":
			json.NewEncoder(w).Encode([]map[string]string{
				{"contract": "BTC_USDT", "volume_24h_settle": "7000000"},
			})
		}
	}))
	defer srv.Close()

	s := NewStats(fetch.NewClient(), srv.URL)
	spotRef := models.MarketRef{Asset: "BTC", Venue: models.VenueGate, Kind: models.KindSpot, NativeSymbol: "BTC_USDT"}
	perpRef := models.MarketRef{Asset: "BTC", Venue: models.VenueGate, Kind: models.KindPerp, NativeSymbol: "BTC_USDT"}

	stats, err := s.Fetch(context.Background(), []models.MarketRef{spotRef, perpRef})
	require.NoError(t, err)
	require.Equal(t, "1000000", stats[spotRef].Vol24hUSD.String())
	require.Equal(t, "7000000", stats[perpRef].Vol24hUSD.String())
}
