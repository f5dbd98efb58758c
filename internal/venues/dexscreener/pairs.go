// Package dexscreener implements the DexScreener adapter. There is no
// stream endpoint: quotes come from fast REST polling of pair pages
// under the shared 300 requests/minute budget, and discovery searches
// BASE/USDT pools for the configured seed assets.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"quoteflow/internal/fetch"
)

const RestURL = "https://api.dexscreener.com"

// pair is the subset of the DexScreener pair payload this adapter
// reads.
type pair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Symbol string `json:"symbol"`
	} `json:"quoteToken"`
	PriceUsd  string `json:"priceUsd"`
	Liquidity struct {
		Usd json.Number `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 json.Number `json:"h24"`
	} `json:"volume"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
	UpdatedAt     int64 `json:"updatedAt"`
}

type pairsResponse struct {
	Pairs []pair `json:"pairs"`
}

func getPair(ctx context.Context, client *fetch.Client, restURL, chain, pairAddress string) (*pair, error) {
	var resp pairsResponse
	u := restURL + "/latest/dex/pairs/" + url.PathEscape(chain) + "/" + url.PathEscape(pairAddress)
	if err := client.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener pair %s:%s: %w", chain, pairAddress, err)
	}
	if len(resp.Pairs) == 0 {
		return nil, nil
	}
	return &resp.Pairs[0], nil
}
