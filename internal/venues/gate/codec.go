// Package gate implements the Gate.io adapters: v4 book-ticker streams
// for spot and USDT perps, currency-pair discovery and 24h stats.
// Native symbols are underscore form, e.g. BTC_USDT.
package gate

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/stream"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

const (
	SpotWSURL = "wss://api.gateio.ws/ws/v4/"
	PerpWSURL = "wss://fx-ws.gateio.ws/v4/ws/usdt"

	spotChannel = "spot.book_ticker"
	perpChannel = "futures.book_ticker"

	chunkSize = 200
)

type Codec struct {
	kind    models.MarketKind
	wsURL   string
	channel string
}

func NewSpotCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = SpotWSURL
	}
	return &Codec{kind: models.KindSpot, wsURL: wsURL, channel: spotChannel}
}

func NewPerpCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = PerpWSURL
	}
	return &Codec{kind: models.KindPerp, wsURL: wsURL, channel: perpChannel}
}

func (c *Codec) Venue() string           { return models.VenueGate }
func (c *Codec) Kind() models.MarketKind { return c.kind }
func (c *Codec) ChunkSize() int          { return chunkSize }
func (c *Codec) URL([]string) string     { return c.wsURL }

func (c *Codec) SubscribeFrames(syms []string) ([][]byte, error) {
	payload := make([]string, len(syms))
	for i, s := range syms {
		payload[i] = strings.ToUpper(s)
	}
	frame, err := json.Marshal(struct {
		Time    int64    `json:"time"`
		Channel string   `json:"channel"`
		Event   string   `json:"event"`
		Payload []string `json:"payload"`
	}{Time: time.Now().Unix(), Channel: c.channel, Event: "subscribe", Payload: payload})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// Gate answers transport pings itself; no application keepalive.
func (c *Codec) Ping() stream.PingSpec { return stream.PingSpec{} }

type bookTickerFrame struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	// BidQty and AskQty need exact tags so the venue's "B"/"A"
	// quantity keys never match the price fields case-insensitively.
	Result struct {
		Symbol string `json:"s"`
		Bid    string `json:"b"`
		BidQty string `json:"B"`
		Ask    string `json:"a"`
		AskQty string `json:"A"`
		Time   int64  `json:"t"`
	} `json:"result"`
}

func (c *Codec) Decode(_ int, data []byte) (*models.Tick, error) {
	var frame bookTickerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, nil
	}
	if frame.Event != "update" || frame.Channel != c.channel || frame.Result.Symbol == "" {
		return nil, nil
	}

	native := strings.ToUpper(frame.Result.Symbol)
	base, err := symbols.ExtractBase(native, "_")
	if err != nil {
		return nil, err
	}

	bid := parsePrice(frame.Result.Bid)
	ask := parsePrice(frame.Result.Ask)
	mid, ok := models.Mid(bid, ask)
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	return &models.Tick{
		TS:           eventTime(frame.Result.Time, now),
		Asset:        base,
		Venue:        models.VenueGate,
		Kind:         c.kind,
		Bid:          bid,
		Ask:          ask,
		Mid:          mid,
		HeartbeatTS:  now,
		NativeSymbol: native,
	}, nil
}

// eventTime tolerates both epoch seconds (spot) and milliseconds
// (futures).
func eventTime(t int64, fallback time.Time) time.Time {
	switch {
	case t <= 0:
		return fallback
	case t > 1e12:
		return time.UnixMilli(t).UTC()
	default:
		return time.Unix(t, 0).UTC()
	}
}

func parsePrice(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
