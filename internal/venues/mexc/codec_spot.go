// Package mexc implements the MEXC adapters. The spot stream pushes
// protobuf book tickers; decoding the protobuf payload is delegated to
// a pluggable BookTickerDecoder so the wire schema can evolve without
// touching session logic. The perp stream is plain JSON.
package mexc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"quoteflow/internal/stream"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

const (
	SpotWSURL = "wss://wbs-api.mexc.com/ws"

	spotTopicPrefix = "spot@public.aggre.bookTicker.v3.api.pb@100ms@"
	spotChunkSize   = 30

	keepAlive = 20 * time.Second
)

// BookTicker is one decoded spot book-ticker update.
type BookTicker struct {
	Symbol string
	Bid    string
	Ask    string
	TSMs   int64
}

// BookTickerDecoder parses a binary spot frame. ok is false for frames
// that are not book-ticker payloads.
type BookTickerDecoder interface {
	DecodeBookTicker(data []byte) (bt BookTicker, ok bool, err error)
}

type SpotCodec struct {
	wsURL   string
	decoder BookTickerDecoder
}

func NewSpotCodec(wsURL string, decoder BookTickerDecoder) *SpotCodec {
	if wsURL == "" {
		wsURL = SpotWSURL
	}
	return &SpotCodec{wsURL: wsURL, decoder: decoder}
}

func (c *SpotCodec) Venue() string           { return models.VenueMexc }
func (c *SpotCodec) Kind() models.MarketKind { return models.KindSpot }
func (c *SpotCodec) ChunkSize() int          { return spotChunkSize }
func (c *SpotCodec) URL([]string) string     { return c.wsURL }

func (c *SpotCodec) SubscribeFrames(syms []string) ([][]byte, error) {
	params := make([]string, len(syms))
	for i, s := range syms {
		params[i] = spotTopicPrefix + strings.ToUpper(s)
	}
	frame, err := json.Marshal(struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
	}{Method: "SUBSCRIPTION", Params: params})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (c *SpotCodec) Ping() stream.PingSpec {
	return stream.PingSpec{Payload: []byte(`{"method":"PING"}`), Interval: keepAlive}
}

func (c *SpotCodec) Decode(messageType int, data []byte) (*models.Tick, error) {
	// Text frames are acks and PONG responses.
	if messageType != websocket.BinaryMessage {
		return nil, nil
	}
	if c.decoder == nil {
		return nil, nil
	}

	bt, ok, err := c.decoder.DecodeBookTicker(data)
	if err != nil || !ok || bt.Symbol == "" {
		return nil, nil
	}

	native := strings.ToUpper(bt.Symbol)
	base, err := symbols.ExtractBase(native, "")
	if err != nil {
		return nil, err
	}

	bid := parsePrice(bt.Bid)
	ask := parsePrice(bt.Ask)
	mid, ok := models.Mid(bid, ask)
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	ts := now
	if bt.TSMs > 0 {
		ts = time.UnixMilli(bt.TSMs).UTC()
	}
	return &models.Tick{
		TS:           ts,
		Asset:        base,
		Venue:        models.VenueMexc,
		Kind:         models.KindSpot,
		Bid:          bid,
		Ask:          ask,
		Mid:          mid,
		HeartbeatTS:  now,
		NativeSymbol: native,
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
