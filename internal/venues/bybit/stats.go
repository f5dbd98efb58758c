package bybit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/fetch"
	"quoteflow/models"
)

// Stats resolves 24h USD turnover from the v5 market tickers endpoint,
// one call per category.
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

func (s *Stats) Venue() string { return models.VenueBybit }

type marketTickers struct {
	Result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Turnover24h   string `json:"turnover24h"`
			Volume24h     string `json:"volume24h"`
			UsdIndexPrice string `json:"usdIndexPrice"`
		} `json:"list"`
	} `json:"result"`
}

func (s *Stats) Fetch(ctx context.Context, refs []models.MarketRef) (map[models.MarketRef]models.MarketStats, error) {
	byCategory := map[string]map[string]models.MarketRef{}
	for _, ref := range refs {
		category := "linear"
		if ref.Kind == models.KindSpot {
			category = "spot"
		}
		if byCategory[category] == nil {
			byCategory[category] = map[string]models.MarketRef{}
		}
		byCategory[category][ref.NativeSymbol] = ref
	}

	out := make(map[models.MarketRef]models.MarketStats, len(refs))
	now := time.Now().UTC()
	for category, symRefs := range byCategory {
		var tickers marketTickers
		url := s.restURL + "/v5/market/tickers?category=" + category
		if err := s.client.GetJSON(ctx, url, &tickers); err != nil {
			return nil, fmt.Errorf("bybit %s tickers: %w", category, err)
		}

		for _, t := range tickers.Result.List {
			ref, ok := symRefs[t.Symbol]
			if !ok {
				continue
			}
			vol, ok := turnoverUSD(t.Turnover24h, t.UsdIndexPrice, t.Volume24h)
			if !ok {
				continue
			}
			out[ref] = models.MarketStats{Vol24hUSD: vol, AsOf: now}
		}
	}
	return out, nil
}

// turnoverUSD prefers turnover24h and falls back to
// usdIndexPrice * volume24h, which spot tickers sometimes need.
func turnoverUSD(turnover, usdIndexPrice, volume string) (decimal.Decimal, bool) {
	if turnover != "" {
		if d, err := decimal.NewFromString(turnover); err == nil {
			return d, true
		}
	}
	price, err := decimal.NewFromString(usdIndexPrice)
	if err != nil {
		return decimal.Decimal{}, false
	}
	vol, err := decimal.NewFromString(volume)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price.Mul(vol), true
}
