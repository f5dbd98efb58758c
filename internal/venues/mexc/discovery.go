package mexc

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
	SpotRestURL = "https://api.mexc.com"
	PerpRestURL = "https://contract.mexc.com"
)

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
		Symbol              string `json:"symbol"`
		Status              string `json:"status"`
		BaseAsset           string `json:"baseAsset"`
		QuoteAsset          string `json:"quoteAsset"`
		QuoteAssetPrecision int    `json:"quoteAssetPrecision"`
		QuotePrecision      int    `json:"quotePrecision"`
		BaseAssetPrecision  int    `json:"baseAssetPrecision"`
		BaseSizePrecision   string `json:"baseSizePrecision"`
	} `json:"symbols"`
}

func (d *Discovery) ListSpotUSDT(ctx context.Context) ([]models.VenueListing, error) {
	var info exchangeInfo
	if err := d.client.GetJSON(ctx, d.spotRestURL+"/api/v3/exchangeInfo", &info); err != nil {
		return nil, fmt.Errorf("mexc exchange info: %w", err)
	}

	listings := make([]models.VenueListing, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		// Status "1" is online; "2" pause, "3" offline.
		if s.Status != "1" || !strings.EqualFold(s.QuoteAsset, "USDT") {
			continue
		}

		priceScale := s.QuoteAssetPrecision
		if priceScale == 0 {
			priceScale = s.QuotePrecision
		}
		qtyScale := symbols.Decimals(s.BaseSizePrecision)
		if qtyScale == 0 {
			qtyScale = s.BaseAssetPrecision
		}

		listings = append(listings, models.VenueListing{
			Venue:        models.VenueMexc,
			Kind:         models.KindSpot,
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

type contractDetail struct {
	Data []struct {
		Symbol      string `json:"symbol"`
		State       int    `json:"state"`
		BaseCoin    string `json:"baseCoin"`
		QuoteCoin   string `json:"quoteCoin"`
		PriceScale  int    `json:"priceScale"`
		AmountScale int    `json:"amountScale"`
	} `json:"data"`
}

func (d *Discovery) ListPerpUSDT(ctx context.Context) ([]models.VenueListing, error) {
	var detail contractDetail
	if err := d.client.GetJSON(ctx, d.perpRestURL+"/api/v1/contract/detail", &detail); err != nil {
		return nil, fmt.Errorf("mexc contract detail: %w", err)
	}

	listings := make([]models.VenueListing, 0, len(detail.Data))
	for _, c := range detail.Data {
		// State 0 is enabled.
		if c.State != 0 || !strings.EqualFold(c.QuoteCoin, "USDT") {
			continue
		}
		listings = append(listings, models.VenueListing{
			Venue:        models.VenueMexc,
			Kind:         models.KindPerp,
			NativeSymbol: strings.ToUpper(c.Symbol),
			Base:         strings.ToUpper(c.BaseCoin),
			Quote:        "USDT",
			PriceScale:   c.PriceScale,
			QtyScale:     c.AmountScale,
			Status:       "ENABLED",
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].NativeSymbol < listings[j].NativeSymbol })
	return listings, nil
}
