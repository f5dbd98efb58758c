// Package catalog persists the discovered market set: venues,
// instruments, markets and their quality metrics.
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/models"
)

// Market is one accepted market row. ID is assigned by the store on
// first upsert and stable afterwards; identity for upserts is
// (Asset, Venue, Kind).
type Market struct {
	ID           string
	Asset        string
	Venue        string
	Kind         models.MarketKind
	NativeSymbol string
	PriceScale   int
	QtyScale     int
	Status       string
}

// Quality is the per-market quality snapshot written each discovery
// cycle.
type Quality struct {
	MarketID     string
	Vol24hUSD    decimal.Decimal
	LiquidityUSD decimal.NullDecimal
	Score        float64
	AsOf         time.Time
}

// Store is the persistence boundary of the discovery engine. All
// operations are idempotent; running a discovery cycle twice yields the
// same rows.
type Store interface {
	EnsureVenue(ctx context.Context, code string) error
	EnsureInstrument(ctx context.Context, asset string, scale int) error

	// UpsertMarket inserts or updates by (Asset, Venue, Kind) and
	// returns the stored row. Scale fields are never downgraded by a
	// later upsert.
	UpsertMarket(ctx context.Context, m Market) (Market, error)

	FindMarket(ctx context.Context, asset, venue string, kind models.MarketKind) (*Market, error)
	ListMarkets(ctx context.Context) ([]Market, error)
	DeleteMarket(ctx context.Context, id string) error

	UpsertMarketQuality(ctx context.Context, q Quality) error

	Close() error
}
