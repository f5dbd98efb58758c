package mexc

import (
	"encoding/json"
	"strings"
	"time"

	"quoteflow/internal/stream"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

const PerpWSURL = "wss://contract.mexc.com/edge"

// PerpCodec speaks the contract edge stream. Subscriptions are one
// frame per symbol; pushes arrive on the push.ticker channel with
// underscore symbols (BTC_USDT).
type PerpCodec struct {
	wsURL string
}

func NewPerpCodec(wsURL string) *PerpCodec {
	if wsURL == "" {
		wsURL = PerpWSURL
	}
	return &PerpCodec{wsURL: wsURL}
}

func (c *PerpCodec) Venue() string           { return models.VenueMexc }
func (c *PerpCodec) Kind() models.MarketKind { return models.KindPerp }
func (c *PerpCodec) ChunkSize() int          { return 0 }
func (c *PerpCodec) URL([]string) string     { return c.wsURL }

func (c *PerpCodec) SubscribeFrames(syms []string) ([][]byte, error) {
	frames := make([][]byte, 0, len(syms))
	for _, s := range syms {
		frame, err := json.Marshal(struct {
			Method string `json:"method"`
			Param  struct {
				Symbol string `json:"symbol"`
			} `json:"param"`
		}{Method: "sub.ticker", Param: struct {
			Symbol string `json:"symbol"`
		}{Symbol: strings.ToUpper(s)}})
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (c *PerpCodec) Ping() stream.PingSpec {
	return stream.PingSpec{Payload: []byte(`{"method":"ping"}`), Interval: keepAlive}
}

type perpFrame struct {
	Channel string `json:"channel"`
	TS      int64  `json:"ts"`
	Data    struct {
		Symbol string      `json:"symbol"`
		Bid1   json.Number `json:"bid1"`
		Ask1   json.Number `json:"ask1"`
	} `json:"data"`
	Symbol string `json:"symbol"`
}

func (c *PerpCodec) Decode(_ int, data []byte) (*models.Tick, error) {
	var frame perpFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, nil
	}
	if frame.Channel != "push.ticker" {
		return nil, nil
	}

	native := strings.ToUpper(frame.Data.Symbol)
	if native == "" {
		native = strings.ToUpper(frame.Symbol)
	}
	if native == "" {
		return nil, nil
	}
	base, err := symbols.ExtractBase(native, "_")
	if err != nil {
		return nil, err
	}

	bid := parsePrice(frame.Data.Bid1.String())
	ask := parsePrice(frame.Data.Ask1.String())
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
		Venue:        models.VenueMexc,
		Kind:         models.KindPerp,
		Bid:          bid,
		Ask:          ask,
		Mid:          mid,
		HeartbeatTS:  now,
		NativeSymbol: native,
	}, nil
}
