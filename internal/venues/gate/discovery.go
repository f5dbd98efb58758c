package gate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/models"
)

const RestURL = "https://api.gateio.ws"

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

type currencyPair struct {
	ID              string `json:"id"`
	Base            string `json:"base"`
	Quote           string `json:"quote"`
	TradeStatus     string `json:"trade_status"`
	Precision       int    `json:"precision"`
	AmountPrecision int    `json:"amount_precision"`
}

func (d *Discovery) ListSpotUSDT(ctx context.Context) ([]models.VenueListing, error) {
	var pairs []currencyPair
	if err := d.client.GetJSON(ctx, d.restURL+"/api/v4/spot/currency_pairs", &pairs); err != nil {
		return nil, fmt.Errorf("gate currency pairs: %w", err)
	}

	listings := make([]models.VenueListing, 0, len(pairs))
	for _, p := range pairs {
		id := strings.ToUpper(p.ID)
		if !strings.HasSuffix(id, "_USDT") || !strings.EqualFold(p.TradeStatus, "tradable") {
			continue
		}
		listings = append(listings, models.VenueListing{
			Venue:        models.VenueGate,
			Kind:         models.KindSpot,
			NativeSymbol: id,
			Base:         strings.ToUpper(p.Base),
			Quote:        "USDT",
			PriceScale:   p.Precision,
			QtyScale:     p.AmountPrecision,
			Status:       p.TradeStatus,
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].NativeSymbol < listings[j].NativeSymbol })
	return listings, nil
}

type futuresContract struct {
	Name            string `json:"name"`
	Contract        string `json:"contract"`
	OrderPriceRound string `json:"order_price_round"`
	OrderSizeRound  string `json:"order_size_round"`
	OrderSizeMin    string `json:"order_size_min"`
	InDelisting     bool   `json:"in_delisting"`
}

func (d *Discovery) ListPerpUSDT(ctx context.Context) ([]models.VenueListing, error) {
	var contracts []futuresContract
	if err := d.client.GetJSON(ctx, d.restURL+"/api/v4/futures/usdt/contracts", &contracts); err != nil {
		return nil, fmt.Errorf("gate futures contracts: %w", err)
	}

	listings := make([]models.VenueListing, 0, len(contracts))
	for _, c := range contracts {
		name := c.Name
		if name == "" {
			name = c.Contract
		}
		id := strings.ToUpper(name)
		base, err := symbols.ExtractBase(id, "_")
		if err != nil {
			continue
		}

		// Contract payloads carry no explicit scales; derive them from
		// the order rounding steps.
		qtyRound := c.OrderSizeRound
		if qtyRound == "" {
			qtyRound = c.OrderSizeMin
		}
		status := "TRADING"
		if c.InDelisting {
			status = "UNTRADABLE"
		}

		listings = append(listings, models.VenueListing{
			Venue:        models.VenueGate,
			Kind:         models.KindPerp,
			NativeSymbol: id,
			Base:         base,
			Quote:        "USDT",
			PriceScale:   symbols.Decimals(c.OrderPriceRound),
			QtyScale:     symbols.Decimals(qtyRound),
			Status:       status,
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].NativeSymbol < listings[j].NativeSymbol })
	return listings, nil
}
