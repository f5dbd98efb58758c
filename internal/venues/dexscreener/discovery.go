package dexscreener

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/logger"
	"quoteflow/models"
)

// Discovery searches BASE/USDT pools for a configured list of seed
// assets. Pools below the liquidity, volume or age floor are dropped
// before they ever reach the orchestrator; DexScreener search results
// are mostly noise without this pre-filter.
type Discovery struct {
	client     *fetch.Client
	restURL    string
	seedAssets []string
	log        *logger.Entry

	minLiquidityUSD decimal.Decimal
	minVol24hUSD    decimal.Decimal
	minAge          time.Duration
}

func NewDiscovery(client *fetch.Client, restURL string, seedAssets []string, minLiquidityUSD, minVol24hUSD float64, minAge time.Duration, log *logger.Log) *Discovery {
	if restURL == "" {
		restURL = RestURL
	}
	return &Discovery{
		client:          client,
		restURL:         restURL,
		seedAssets:      seedAssets,
		log:             log.WithComponent("dexscreener_discovery"),
		minLiquidityUSD: decimal.NewFromFloat(minLiquidityUSD),
		minVol24hUSD:    decimal.NewFromFloat(minVol24hUSD),
		minAge:          minAge,
	}
}

// ListSpotUSDT returns the qualifying pools for all seed assets. A DEX
// pool plays the spot role in the venue set; the listings carry
// KindDex.
func (d *Discovery) ListSpotUSDT(ctx context.Context) ([]models.VenueListing, error) {
	var listings []models.VenueListing
	for _, asset := range d.seedAssets {
		pools, err := d.searchPools(ctx, strings.ToUpper(asset))
		if err != nil {
			// One bad seed asset must not sink the rest.
			d.log.WithError(err).WithFields(logger.Fields{"asset": asset}).Warn("pool search failed")
			continue
		}
		listings = append(listings, pools...)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].NativeSymbol < listings[j].NativeSymbol })
	return listings, nil
}

// ListPerpUSDT is empty: DexScreener carries no perps.
func (d *Discovery) ListPerpUSDT(context.Context) ([]models.VenueListing, error) {
	return nil, nil
}

func (d *Discovery) searchPools(ctx context.Context, baseUpper string) ([]models.VenueListing, error) {
	var resp pairsResponse
	u := d.restURL + "/latest/dex/search?q=" + url.QueryEscape(baseUpper+"/USDT")
	if err := d.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]models.VenueListing, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		if !strings.EqualFold(p.QuoteToken.Symbol, "USDT") || !strings.EqualFold(p.BaseToken.Symbol, baseUpper) {
			continue
		}
		if p.ChainID == "" || p.PairAddress == "" {
			continue
		}
		if !d.qualifies(p, now) {
			continue
		}

		out = append(out, models.VenueListing{
			Venue:        models.VenueDexscreener,
			Kind:         models.KindDex,
			NativeSymbol: symbols.PoolSymbol(p.ChainID, p.PairAddress),
			Base:         baseUpper,
			Quote:        "USDT",
			PriceScale:   symbols.Decimals(p.PriceUsd),
			QtyScale:     0,
			Status:       "TRADING",
		})
	}
	return out, nil
}

func (d *Discovery) qualifies(p pair, now time.Time) bool {
	liq, err := decimal.NewFromString(p.Liquidity.Usd.String())
	if err != nil || liq.LessThan(d.minLiquidityUSD) {
		return false
	}
	vol, err := decimal.NewFromString(p.Volume.H24.String())
	if err != nil || vol.LessThan(d.minVol24hUSD) {
		return false
	}
	if p.PairCreatedAt > 0 && now.Sub(time.UnixMilli(p.PairCreatedAt)) < d.minAge {
		return false
	}
	return true
}
