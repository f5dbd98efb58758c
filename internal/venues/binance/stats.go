package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/fetch"
	"quoteflow/models"
)

// Stats resolves 24h quote volume from the Binance ticker endpoints.
// One call per kind fetches the full ticker list, so the cost does not
// grow with the number of refs.
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

func (s *Stats) Venue() string { return models.VenueBinance }

type ticker24h struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

func (s *Stats) Fetch(ctx context.Context, refs []models.MarketRef) (map[models.MarketRef]models.MarketStats, error) {
	byKind := map[models.MarketKind][]models.MarketRef{}
	for _, ref := range refs {
		byKind[ref.Kind] = append(byKind[ref.Kind], ref)
	}

	out := make(map[models.MarketRef]models.MarketStats, len(refs))
	for kind, kindRefs := range byKind {
		var url string
		switch kind {
		case models.KindSpot:
			url = s.spotRestURL + "/api/v3/ticker/24hr"
		case models.KindPerp:
			url = s.perpRestURL + "/fapi/v1/ticker/24hr"
		default:
			continue
		}

		var tickers []ticker24h
		if err := s.client.GetJSON(ctx, url, &tickers); err != nil {
			return nil, fmt.Errorf("binance %s tickers: %w", kind, err)
		}

		volumes := make(map[string]decimal.Decimal, len(tickers))
		for _, t := range tickers {
			vol, err := decimal.NewFromString(t.QuoteVolume)
			if err != nil {
				continue
			}
			volumes[t.Symbol] = vol
		}

		now := time.Now().UTC()
		for _, ref := range kindRefs {
			vol, ok := volumes[ref.NativeSymbol]
			if !ok {
				continue
			}
			out[ref] = models.MarketStats{Vol24hUSD: vol, AsOf: now}
		}
	}
	return out, nil
}
