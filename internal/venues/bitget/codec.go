// Package bitget implements the Bitget v2 adapters: the shared public
// ticker stream for spot and USDT futures, symbol discovery and 24h
// stats.
package bitget

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
	WSURL = "wss://ws.bitget.com/v2/ws/public"

	chunkSize = 100
	keepAlive = 30 * time.Second
)

// Codec speaks the v2 public ticker channel. Spot and futures share the
// endpoint and differ only in the instType subscribe argument.
type Codec struct {
	kind  models.MarketKind
	wsURL string
}

func NewSpotCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = WSURL
	}
	return &Codec{kind: models.KindSpot, wsURL: wsURL}
}

func NewPerpCodec(wsURL string) *Codec {
	if wsURL == "" {
		wsURL = WSURL
	}
	return &Codec{kind: models.KindPerp, wsURL: wsURL}
}

func (c *Codec) Venue() string           { return models.VenueBitget }
func (c *Codec) Kind() models.MarketKind { return c.kind }
func (c *Codec) ChunkSize() int          { return chunkSize }
func (c *Codec) URL([]string) string     { return c.wsURL }

func (c *Codec) instType() string {
	if c.kind == models.KindSpot {
		return "SPOT"
	}
	return "USDT-FUTURES"
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

func (c *Codec) SubscribeFrames(syms []string) ([][]byte, error) {
	args := make([]subscribeArg, len(syms))
	for i, s := range syms {
		args[i] = subscribeArg{InstType: c.instType(), Channel: "ticker", InstID: strings.ToUpper(s)}
	}
	frame, err := json.Marshal(struct {
		Op   string         `json:"op"`
		Args []subscribeArg `json:"args"`
	}{Op: "subscribe", Args: args})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// Bitget keepalive is a bare text "ping" answered with "pong".
func (c *Codec) Ping() stream.PingSpec {
	return stream.PingSpec{Payload: []byte("ping"), Interval: keepAlive}
}

type tickerFrame struct {
	Arg struct {
		Channel string `json:"channel"`
	} `json:"arg"`
	TS   int64 `json:"ts"`
	Data []struct {
		InstID string `json:"instId"`
		BidPr  string `json:"bidPr"`
		AskPr  string `json:"askPr"`
	} `json:"data"`
}

func (c *Codec) Decode(_ int, data []byte) (*models.Tick, error) {
	if string(data) == "pong" {
		return nil, nil
	}
	var frame tickerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, nil
	}
	if frame.Arg.Channel != "ticker" || len(frame.Data) == 0 {
		return nil, nil
	}

	item := frame.Data[0]
	if item.InstID == "" {
		return nil, nil
	}
	base, err := symbols.ExtractBase(strings.ToUpper(item.InstID), "")
	if err != nil {
		return nil, err
	}

	bid := parsePrice(item.BidPr)
	ask := parsePrice(item.AskPr)
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
		Venue:        models.VenueBitget,
		Kind:         c.kind,
		Bid:          bid,
		Ask:          ask,
		Mid:          mid,
		HeartbeatTS:  now,
		NativeSymbol: strings.ToUpper(item.InstID),
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
