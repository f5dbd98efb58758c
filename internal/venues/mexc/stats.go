package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/fetch"
	"quoteflow/models"
)

// Stats resolves 24h volume: spot from the v3 24hr tickers, perps from
// the contract ticker endpoint.
type Stats struct {
	client      *fetch.Client
	spotRestURL string
	perpRestURL string
}

func NewStats(client *fetch.Client, spotRestURL, perpRestURL string) *Stats {
	if spotRestURL == "" {
		spotRestURL = SpotRestURL
	}
	if perpRestURL == "" {
		perpRestURL = PerpRestURL
	}
	return &Stats{client: client, spotRestURL: spotRestURL, perpRestURL: perpRestURL}
}

func (s *Stats) Venue() string { return models.VenueMexc }

func (s *Stats) Fetch(ctx context.Context, refs []models.MarketRef) (map[models.MarketRef]models.MarketStats, error) {
	spot := map[string]models.MarketRef{}
	perp := map[string]models.MarketRef{}
	for _, ref := range refs {
		if ref.Kind == models.KindSpot {
			spot[ref.NativeSymbol] = ref
		} else {
			perp[ref.NativeSymbol] = ref
		}
	}

	out := make(map[models.MarketRef]models.MarketStats, len(refs))
	now := time.Now().UTC()

	if len(spot) > 0 {
		var tickers []struct {
			Symbol      string `json:"symbol"`
			QuoteVolume string `json:"quoteVolume"`
		}
		if err := s.client.GetJSON(ctx, s.spotRestURL+"/api/v3/ticker/24hr", &tickers); err != nil {
			return nil, fmt.Errorf("mexc spot tickers: %w", err)
		}
		for _, t := range tickers {
			ref, ok := spot[t.Symbol]
			if !ok {
				continue
			}
			if vol, err := decimal.NewFromString(t.QuoteVolume); err == nil {
				out[ref] = models.MarketStats{Vol24hUSD: vol, AsOf: now}
			}
		}
	}

	if len(perp) > 0 {
		var resp struct {
			Data []struct {
				Symbol   string      `json:"symbol"`
				Volume24 json.Number `json:"volume24"`
			} `json:"data"`
		}
		if err := s.client.GetJSON(ctx, s.perpRestURL+"/api/v1/contract/ticker", &resp); err != nil {
			return nil, fmt.Errorf("mexc contract tickers: %w", err)
		}
		for _, t := range resp.Data {
			ref, ok := perp[t.Symbol]
			if !ok {
				continue
			}
			if vol, err := decimal.NewFromString(t.Volume24.String()); err == nil {
				out[ref] = models.MarketStats{Vol24hUSD: vol, AsOf: now}
			}
		}
	}
	return out, nil
}
