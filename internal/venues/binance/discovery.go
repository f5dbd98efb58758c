package binance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

const (
	SpotRestURL = "https://api.binance.com"
	PerpRestURL = "https://fapi.binance.com"
)

// Discovery lists tradable USDT instruments from the Binance exchange
// info endpoints.
type Discovery struct {
	client      *fetch.Client
	spotRestURL string
	perpRestURL string
}

func NewDiscovery(client *fetch.Client, spotRestURL, perpRestURL string) *Discovery {
	if spotRestURL == "" {
		spotRestURL = SpotRestURL
	}
	if perpRestURL == "" {
		perpRestURL = PerpRestURL
	}
	return &Discovery{client: client, spotRestURL: spotRestURL, perpRestURL: perpRestURL}
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Filters    []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

func (d *Discovery) ListSpotUSDT(ctx context.Context) ([]models.VenueListing, error) {
	return d.list(ctx, d.spotRestURL+"/api/v3/exchangeInfo", models.KindSpot)
}

func (d *Discovery) ListPerpUSDT(ctx context.Context) ([]models.VenueListing, error) {
	return d.list(ctx, d.perpRestURL+"/fapi/v1/exchangeInfo", models.KindPerp)
}

func (d *Discovery) list(ctx context.Context, url string, kind models.MarketKind) ([]models.VenueListing, error) {
	var info exchangeInfo
	if err := d.client.GetJSON(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}

	listings := make([]models.VenueListing, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.QuoteAsset != "USDT" {
			continue
		}
		priceScale, qtyScale := 0, 0
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				priceScale = symbols.Decimals(f.TickSize)
			case "LOT_SIZE":
				qtyScale = symbols.Decimals(f.StepSize)
			}
		}
		listings = append(listings, models.VenueListing{
			Venue:        models.VenueBinance,
			Kind:         kind,
			NativeSymbol: strings.ToUpper(s.Symbol),
			Base:         strings.ToUpper(s.BaseAsset),
			Quote:        "USDT",
			PriceScale:   priceScale,
			QtyScale:     qtyScale,
			Status:       s.Status,
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].NativeSymbol < listings[j].NativeSymbol })
	return listings, nil
}
