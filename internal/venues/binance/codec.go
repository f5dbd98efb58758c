// Package binance implements the Binance spot and USDT-perp adapters:
// combined-stream book tickers, exchange info discovery and 24h stats.
package binance

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
	SpotWSURL = "wss://stream.binance.com/stream"
	PerpWSURL = "wss://fstream.binance.com/stream"

	// Combined streams carry up to 200 streams per connection.
	chunkSize = 200
)

// Codec speaks the Binance combined book-ticker stream. The combined
// URL carries the subscription, so no subscribe frames are sent, and
// Binance pings at the protocol level only.
type Codec struct {
	kind    models.MarketKind
	baseURL string
}

func NewSpotCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = SpotWSURL
	}
	return &Codec{kind: models.KindSpot, baseURL: wsURL}
}

func NewPerpCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = PerpWSURL
	}
	return &Codec{kind: models.KindPerp, baseURL: wsURL}
}

func (c *Codec) Venue() string           { return models.VenueBinance }
func (c *Codec) Kind() models.MarketKind { return c.kind }
func (c *Codec) ChunkSize() int          { return chunkSize }

func (c *Codec) URL(syms []string) string {
	streams := make([]string, len(syms))
	for i, s := range syms {
		streams[i] = strings.ToLower(s) + "@bookTicker"
	}
	return c.baseURL + "?streams=" + strings.Join(streams, "/")
}

func (c *Codec) SubscribeFrames([]string) ([][]byte, error) { return nil, nil }

func (c *Codec) Ping() stream.PingSpec { return stream.PingSpec{} }

// BidQty and AskQty must carry exact tags: without them the decoder
// matches "B"/"A" case-insensitively against the price fields and the
// quantities overwrite the prices.
type bookTickerEvent struct {
	Symbol    string `json:"s"`
	Bid       string `json:"b"`
	BidQty    string `json:"B"`
	Ask       string `json:"a"`
	AskQty    string `json:"A"`
	EventTime int64  `json:"E"`
}

func (c *Codec) Decode(_ int, data []byte) (*models.Tick, error) {
	// Combined streams wrap the payload; raw streams do not.
	var wrapper struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	payload := data
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Data) > 0 {
		payload = wrapper.Data
	}

	var ev bookTickerEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Symbol == "" {
		return nil, nil
	}

	base, err := symbols.ExtractBase(strings.ToUpper(ev.Symbol), "")
	if err != nil {
		return nil, err
	}

	bid := parsePrice(ev.Bid)
	ask := parsePrice(ev.Ask)
	mid, ok := models.Mid(bid, ask)
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	ts := now
	if ev.EventTime > 0 {
		ts = time.UnixMilli(ev.EventTime).UTC()
	}
	return &models.Tick{
		TS:           ts,
		Asset:        base,
		Venue:        models.VenueBinance,
		Kind:         c.kind,
		Bid:          bid,
		Ask:          ask,
		Mid:          mid,
		HeartbeatTS:  now,
		NativeSymbol: strings.ToUpper(ev.Symbol),
	}, nil
}

// parsePrice treats empty and non-positive values as an absent side.
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
