package dexscreener

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

// Stats resolves pool volume and liquidity one pool page at a time.
// Pools that fail to resolve are simply absent from the result.
type Stats struct {
	client  *fetch.Client
	restURL string
}

func NewStats(client *fetch.Client, restURL string) *Stats {
	if restURL == "" {
		restURL = RestURL
	}
	return &Stats{client: client, restURL: restURL}
}

func (s *Stats) Venue() string { return models.VenueDexscreener }

func (s *Stats) Fetch(ctx context.Context, refs []models.MarketRef) (map[models.MarketRef]models.MarketStats, error) {
	out := make(map[models.MarketRef]models.MarketStats, len(refs))
	now := time.Now().UTC()

	for _, ref := range refs {
		chain, pairAddress, err := symbols.SplitPool(ref.NativeSymbol)
		if err != nil {
			continue
		}
		p, err := getPair(ctx, s.client, s.restURL, chain, pairAddress)
		if err != nil || p == nil {
			continue
		}

		vol, err := decimal.NewFromString(p.Volume.H24.String())
		if err != nil {
			continue
		}
		stats := models.MarketStats{Vol24hUSD: vol, AsOf: now}
		if liq, err := decimal.NewFromString(p.Liquidity.Usd.String()); err == nil {
			stats.LiquidityUSD = decimal.NullDecimal{Decimal: liq, Valid: true}
		}
		out[ref] = stats
	}
	return out, nil
}
