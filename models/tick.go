package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one normalized best-bid/ask quote event.
//
// Mid is always set on an emitted tick: (bid+ask)/2 when both sides are
// present, otherwise whichever side the venue delivered. Bid/Ask/Depth
// stay null when the source channel does not carry them. MarketID is
// resolved downstream, never by an adapter.
type Tick struct {
	TS           time.Time           `json:"ts"`
	Asset        string              `json:"asset"`
	Venue        string              `json:"venue"`
	Kind         MarketKind          `json:"kind"`
	Bid          decimal.NullDecimal `json:"bid"`
	Ask          decimal.NullDecimal `json:"ask"`
	Mid          decimal.Decimal     `json:"mid"`
	DepthUSD50   decimal.NullDecimal `json:"depth_usd50"`
	HeartbeatTS  time.Time           `json:"heartbeat_ts"`
	MarketID     string              `json:"market_id,omitempty"`
	NativeSymbol string              `json:"native_symbol"`
}

// Mid computes the tick mid price from optional bid/ask. The second
// return is false when neither side is present, in which case no tick
// must be emitted.
func Mid(bid, ask decimal.NullDecimal) (decimal.Decimal, bool) {
	switch {
	case bid.Valid && ask.Valid:
		return decimal.Avg(bid.Decimal, ask.Decimal), true
	case bid.Valid:
		return bid.Decimal, true
	case ask.Valid:
		return ask.Decimal, true
	default:
		return decimal.Decimal{}, false
	}
}

// TickHandler receives normalized ticks. Implementations must return
// quickly: dispatch happens on the session receive loop and a slow
// handler backpressures the transport.
type TickHandler interface {
	OnTick(Tick)
}

// TickHandlerFunc adapts a function to TickHandler.
type TickHandlerFunc func(Tick)

func (f TickHandlerFunc) OnTick(t Tick) { f(t) }
