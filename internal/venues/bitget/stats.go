package bitget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/fetch"
	"quoteflow/models"
)

// Stats resolves 24h USDT volume from the market tickers endpoints.
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

func (s *Stats) Venue() string { return models.VenueBitget }

type tickersResponse struct {
	Data []struct {
		Symbol      string `json:"symbol"`
		UsdtVolume  string `json:"usdtVolume"`
		QuoteVolume string `json:"quoteVolume"`
	} `json:"data"`
}

func (s *Stats) Fetch(ctx context.Context, refs []models.MarketRef) (map[models.MarketRef]models.MarketStats, error) {
	byKind := map[models.MarketKind]map[string]models.MarketRef{}
	for _, ref := range refs {
		if byKind[ref.Kind] == nil {
			byKind[ref.Kind] = map[string]models.MarketRef{}
		}
		byKind[ref.Kind][ref.NativeSymbol] = ref
	}

	out := make(map[models.MarketRef]models.MarketStats, len(refs))
	now := time.Now().UTC()
	for kind, symRefs := range byKind {
		var url string
		switch kind {
		case models.KindSpot:
			url = s.restURL + "/api/v2/spot/market/tickers"
		case models.KindPerp:
			url = s.restURL + "/api/v2/mix/market/tickers?productType=USDT-FUTURES"
		default:
			continue
		}

		var resp tickersResponse
		if err := s.client.GetJSON(ctx, url, &resp); err != nil {
			return nil, fmt.Errorf("bitget %s tickers: %w", kind, err)
		}

		for _, t := range resp.Data {
			ref, ok := symRefs[t.Symbol]
			if !ok {
				continue
			}
			raw := t.UsdtVolume
			if raw == "" {
				raw = t.QuoteVolume
			}
			vol, err := decimal.NewFromString(raw)
			if err != nil {
				continue
			}
			out[ref] = models.MarketStats{Vol24hUSD: vol, AsOf: now}
		}
	}
	return out, nil
}
