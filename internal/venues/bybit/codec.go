// Package bybit implements the Bybit v5 adapters: public ticker
// streams for spot and linear perps plus 24h stats from the market
// tickers endpoint.
package bybit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/stream"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

const (
	SpotWSURL   = "wss://stream.bybit.com/v5/public/spot"
	LinearWSURL = "wss://stream.bybit.com/v5/public/linear"

	// Spot connections reject subscribe requests above 10 args.
	spotChunkSize   = 10
	linearChunkSize = 100

	keepAlive = 20 * time.Second
)

type Codec struct {
	kind  models.MarketKind
	wsURL string
}

func NewSpotCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = SpotWSURL
	}
	return &Codec{kind: models.KindSpot, wsURL: wsURL}
}

func NewPerpCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = LinearWSURL
	}
	return &Codec{kind: models.KindPerp, wsURL: wsURL}
}

func (c *Codec) Venue() string           { return models.VenueBybit }
func (c *Codec) Kind() models.MarketKind { return c.kind }

func (c *Codec) ChunkSize() int {
	if c.kind == models.KindSpot {
		return spotChunkSize
	}
	return linearChunkSize
}

func (c *Codec) URL([]string) string { return c.wsURL }

func (c *Codec) SubscribeFrames(syms []string) ([][]byte, error) {
	args := make([]string, len(syms))
	for i, s := range syms {
		args[i] = "tickers." + strings.ToUpper(s)
	}
	req := struct {
		Op    string   `json:"op"`
		Args  []string `json:"args"`
		ReqID string   `json:"req_id"`
	}{
		Op:    "subscribe",
		Args:  args,
		ReqID: fmt.Sprintf("%d", time.Now().UnixNano()),
	}
	frame, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (c *Codec) Ping() stream.PingSpec {
	return stream.PingSpec{Payload: []byte(`{"op":"ping"}`), Interval: keepAlive}
}

type tickerFrame struct {
	Topic string          `json:"topic"`
	Op    string          `json:"op"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

type tickerData struct {
	Symbol    string `json:"symbol"`
	Bid1Price string `json:"bid1Price"`
	Ask1Price string `json:"ask1Price"`
}

func (c *Codec) Decode(_ int, data []byte) (*models.Tick, error) {
	var frame tickerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, nil
	}
	// Subscribe acks and pong responses carry op instead of topic.
	if frame.Op != "" || !strings.HasPrefix(frame.Topic, "tickers.") || len(frame.Data) == 0 {
		return nil, nil
	}

	// Spot pushes a single object, linear wraps it in an array.
	var td tickerData
	if frame.Data[0] == '[' {
		var items []tickerData
		if err := json.Unmarshal(frame.Data, &items); err != nil || len(items) == 0 {
			return nil, nil
		}
		td = items[0]
	} else if err := json.Unmarshal(frame.Data, &td); err != nil {
		return nil, nil
	}
	if td.Symbol == "" {
		return nil, nil
	}

	base, err := symbols.ExtractBase(strings.ToUpper(td.Symbol), "")
	if err != nil {
		return nil, err
	}

	bid := parsePrice(td.Bid1Price)
	ask := parsePrice(td.Ask1Price)
	// Ticker deltas may carry only one side; the other stays null.
	mid, ok := models.Mid(bid, ask)
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	ts := now
	if frame.TS > 0 {
		ts = time.UnixMilli(frame.TS).UTC()
	}
	return &models.Tick{
		TS:           ts,
		Asset:        base,
		Venue:        models.VenueBybit,
		Kind:         c.kind,
		Bid:          bid,
		Ask:          ask,
		Mid:          mid,
		HeartbeatTS:  now,
		NativeSymbol: strings.ToUpper(td.Symbol),
	}, nil
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
