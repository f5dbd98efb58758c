package bybit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

const RestURL = "https://api.bybit.com"

// Discovery lists tradable USDT instruments from the v5
// instruments-info endpoint, one category per kind.
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

type instrumentsInfo struct {
	Result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			Status      string `json:"status"`
			BaseCoin    string `json:"baseCoin"`
			QuoteCoin   string `json:"quoteCoin"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				BasePrecision string `json:"basePrecision"`
				QtyStep       string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	} `json:"result"`
}

func (d *Discovery) ListSpotUSDT(ctx context.Context) ([]models.VenueListing, error) {
	return d.list(ctx, "spot", models.KindSpot)
}

func (d *Discovery) ListPerpUSDT(ctx context.Context) ([]models.VenueListing, error) {
	return d.list(ctx, "linear", models.KindPerp)
}

func (d *Discovery) list(ctx context.Context, category string, kind models.MarketKind) ([]models.VenueListing, error) {
	url := d.restURL + "/v5/market/instruments-info?category=" + category

	var info instrumentsInfo
	if err := d.client.GetJSON(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("bybit instruments: %w", err)
	}

	listings := make([]models.VenueListing, 0, len(info.Result.List))
	for _, item := range info.Result.List {
		if !strings.EqualFold(item.Status, "Trading") || !strings.EqualFold(item.QuoteCoin, "USDT") {
			continue
		}

		// Spot carries the base precision directly; linear exposes a
		// quantity step instead.
		qtyScale := symbols.Decimals(item.LotSizeFilter.QtyStep)
		if category == "spot" {
			if v, err := strconv.Atoi(strings.TrimSpace(item.LotSizeFilter.BasePrecision)); err == nil {
				qtyScale = v
			} else {
				qtyScale = symbols.Decimals(item.LotSizeFilter.BasePrecision)
			}
		}

		listings = append(listings, models.VenueListing{
			Venue:        models.VenueBybit,
			Kind:         kind,
			NativeSymbol: strings.ToUpper(item.Symbol),
			Base:         strings.ToUpper(item.BaseCoin),
			Quote:        "USDT",
			PriceScale:   symbols.Decimals(item.PriceFilter.TickSize),
			QtyScale:     qtyScale,
			Status:       item.Status,
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].NativeSymbol < listings[j].NativeSymbol })
	return listings, nil
}
