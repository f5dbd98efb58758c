package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketKind classifies a market: SPOT, PERP, FUTURES or DEX.
type MarketKind string

const (
	KindSpot    MarketKind = "SPOT"
	KindPerp    MarketKind = "PERP"
	KindFutures MarketKind = "FUTURES"
	KindDex     MarketKind = "DEX"
)

// Derivative reports whether the kind needs a spot/DEX price anchor.
func (k MarketKind) Derivative() bool {
	return k == KindPerp || k == KindFutures
}

// Venue codes. Venues are plain strings everywhere; these constants just
// keep the spelling in one place.
const (
	VenueBinance     = "BINANCE"
	VenueBybit       = "BYBIT"
	VenueBitget      = "BITGET"
	VenueGate        = "GATE"
	VenueMexc        = "MEXC"
	VenueDexscreener = "DEXSCREENER"
)

// VenueListing describes one tradable instrument on one venue/kind.
// Quote is always USDT in this system; NativeSymbol is unique per
// venue+kind.
type VenueListing struct {
	Venue        string
	Kind         MarketKind
	NativeSymbol string
	Base         string
	Quote        string
	PriceScale   int
	QtyScale     int
	Status       string
}

// Ref builds the identity key used to correlate the listing with its 24h
// statistics and its catalog row.
func (v VenueListing) Ref() MarketRef {
	return MarketRef{Asset: v.Base, Venue: v.Venue, Kind: v.Kind, NativeSymbol: v.NativeSymbol}
}

// MarketRef identifies a market for stats resolution and persistence.
// Equality is by all four fields, so it is usable as a map key.
type MarketRef struct {
	Asset        string
	Venue        string
	Kind         MarketKind
	NativeSymbol string
}

// MarketStats carries the 24h USD volume and, for DEX pools, the pool
// liquidity. LiquidityUSD is invalid for CEX markets.
type MarketStats struct {
	Vol24hUSD    decimal.Decimal
	LiquidityUSD decimal.NullDecimal
	AsOf         time.Time
}
