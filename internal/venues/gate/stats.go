package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/fetch"
	"quoteflow/models"
)

// Stats resolves 24h quote volume: spot tickers report quote_volume,
// futures tickers report settle-currency volume.
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

func (s *Stats) Venue() string { return models.VenueGate }

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
			CurrencyPair string `json:"currency_pair"`
			QuoteVolume  string `json:"quote_volume"`
		}
		if err := s.client.GetJSON(ctx, s.restURL+"/api/v4/spot/tickers", &tickers); err != nil {
			return nil, fmt.Errorf("gate spot tickers: %w", err)
		}
		for _, t := range tickers {
			ref, ok := spot[t.CurrencyPair]
			if !ok {
				continue
			}
			if vol, err := decimal.NewFromString(t.QuoteVolume); err == nil {
				out[ref] = models.MarketStats{Vol24hUSD: vol, AsOf: now}
			}
		}
	}

	if len(perp) > 0 {
		var tickers []struct {
			Contract        string `json:"contract"`
			Volume24hSettle string `json:"volume_24h_settle"`
		}
		if err := s.client.GetJSON(ctx, s.restURL+"/api/v4/futures/usdt/tickers", &tickers); err != nil {
			return nil, fmt.Errorf("gate futures tickers: %w", err)
		}
		for _, t := range tickers {
			ref, ok := perp[t.Contract]
			if !ok {
				continue
			}
			if vol, err := decimal.NewFromString(t.Volume24hSettle); err == nil {
				out[ref] = models.MarketStats{Vol24hUSD: vol, AsOf: now}
			}
		}
	}
	return out, nil
}
