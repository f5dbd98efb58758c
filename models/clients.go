package models

import "context"

// Subscription is the lifecycle handle of one book-ticker subscription
// (possibly spanning several transport connections). Close is idempotent
// and safe to call concurrently.
type Subscription interface {
	Close()
}

// StreamClient streams best bid/ask for a set of native symbols on one
// venue and market kind.
type StreamClient interface {
	SubscribeBookTicker(symbols []string, handler TickHandler) (Subscription, error)
	Close()
}

// DiscoveryClient lists the tradable USDT-quoted instruments of one venue.
// Implementations normalize symbols to BASE/USDT and return listings
// sorted by native symbol.
type DiscoveryClient interface {
	ListSpotUSDT(ctx context.Context) ([]VenueListing, error)
	ListPerpUSDT(ctx context.Context) ([]VenueListing, error)
}

// VenueStatsClient resolves 24h statistics for one venue. Refs that
// cannot be resolved are simply absent from the result; a missing key
// means "no data", not an error.
type VenueStatsClient interface {
	Venue() string
	Fetch(ctx context.Context, refs []MarketRef) (map[MarketRef]MarketStats, error)
}

// StatsClient resolves 24h statistics across venues.
type StatsClient interface {
	Fetch24hStats(ctx context.Context, refs []MarketRef) map[MarketRef]MarketStats
}
