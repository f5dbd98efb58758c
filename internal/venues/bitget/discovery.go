package bitget

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"quoteflow/internal/fetch"
	"quoteflow/models"
)

const RestURL = "https://api.bitget.com"

// Discovery lists online USDT instruments. Spot and futures use
// different endpoints but share the response shape.
type Discovery struct {
	client  *fetch.Client
	restURL string
}

func NewDiscovery(client *fetch.Client, restURL string) *Discovery {
	if restURL == "" {
		restURL = RestURL
	}
	return &Discovery{client: client, restURL: restURL}
}

type symbolsResponse struct {
	Data []struct {
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		BaseCoin          string `json:"baseCoin"`
		QuoteCoin         string `json:"quoteCoin"`
		PricePrecision    string `json:"pricePrecision"`
		QuantityPrecision string `json:"quantityPrecision"`
	} `json:"data"`
}

func (d *Discovery) ListSpotUSDT(ctx context.Context) ([]models.VenueListing, error) {
	return d.list(ctx, d.restURL+"/api/v2/spot/public/symbols", models.KindSpot)
}

func (d *Discovery) ListPerpUSDT(ctx context.Context) ([]models.VenueListing, error) {
	return d.list(ctx, d.restURL+"/api/v3/market/instruments?category=USDT-FUTURES", models.KindPerp)
}

func (d *Discovery) list(ctx context.Context, url string, kind models.MarketKind) ([]models.VenueListing, error) {
	var resp symbolsResponse
	if err := d.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("bitget symbols: %w", err)
	}

	listings := make([]models.VenueListing, 0, len(resp.Data))
	for _, item := range resp.Data {
		if !strings.EqualFold(item.Status, "online") || !strings.EqualFold(item.QuoteCoin, "USDT") {
			continue
		}
		listings = append(listings, models.VenueListing{
			Venue:        models.VenueBitget,
			Kind:         kind,
			NativeSymbol: strings.ToUpper(item.Symbol),
			Base:         strings.ToUpper(item.BaseCoin),
			Quote:        "USDT",
			PriceScale:   parseIntSafe(item.PricePrecision),
			QtyScale:     parseIntSafe(item.QuantityPrecision),
			Status:       item.Status,
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].NativeSymbol < listings[j].NativeSymbol })
	return listings, nil
}

func parseIntSafe(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}
