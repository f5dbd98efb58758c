// Package venues assembles the enabled venue adapters from
// configuration. An Adapter bundles everything the orchestrator and the
// streamer need for one venue.
package venues

import (
	"quoteflow/config"
	"quoteflow/internal/fetch"
	"quoteflow/internal/stream"
	"quoteflow/internal/venues/binance"
	"quoteflow/internal/venues/bitget"
	"quoteflow/internal/venues/bybit"
	"quoteflow/internal/venues/dexscreener"
	"quoteflow/internal/venues/gate"
	"quoteflow/internal/venues/mexc"
	"quoteflow/logger"
	"quoteflow/models"
)

// Adapter is one venue wired up: discovery, stats and the stream
// clients per market kind. Perp is nil for venues without derivatives.
type Adapter struct {
	Code      string
	Discovery models.DiscoveryClient
	Stats     models.VenueStatsClient
	Spot      models.StreamClient
	Perp      models.StreamClient
}

// Close shuts down the adapter's stream clients.
func (a *Adapter) Close() {
	if a.Spot != nil {
		a.Spot.Close()
	}
	if a.Perp != nil {
		a.Perp.Close()
	}
}

// Build returns the adapters for every enabled venue, in a stable
// order.
func Build(cfg *config.Config, client *fetch.Client, log *logger.Log) []*Adapter {
	var out []*Adapter

	if v := cfg.Venues.Binance; v.Enabled {
		out = append(out, &Adapter{
			Code:      models.VenueBinance,
			Discovery: binance.NewDiscovery(client, v.RestURL, v.PerpRestURL),
			Stats:     binance.NewStats(client, v.RestURL, v.PerpRestURL),
			Spot:      stream.NewClient(binance.NewSpotCodec(v.SpotWSURL), log),
			Perp:      stream.NewClient(binance.NewPerpCodec(v.PerpWSURL), log),
		})
	}
	if v := cfg.Venues.Bybit; v.Enabled {
		out = append(out, &Adapter{
			Code:      models.VenueBybit,
			Discovery: bybit.NewDiscovery(client, v.RestURL),
			Stats:     bybit.NewStats(client, v.RestURL),
			Spot:      stream.NewClient(bybit.NewSpotCodec(v.SpotWSURL), log),
			Perp:      stream.NewClient(bybit.NewPerpCodec(v.PerpWSURL), log),
		})
	}
	if v := cfg.Venues.Bitget; v.Enabled {
		out = append(out, &Adapter{
			Code:      models.VenueBitget,
			Discovery: bitget.NewDiscovery(client, v.RestURL),
			Stats:     bitget.NewStats(client, v.RestURL),
			Spot:      stream.NewClient(bitget.NewSpotCodec(v.SpotWSURL), log),
			Perp:      stream.NewClient(bitget.NewPerpCodec(v.PerpWSURL), log),
		})
	}
	if v := cfg.Venues.Gate; v.Enabled {
		out = append(out, &Adapter{
			Code:      models.VenueGate,
			Discovery: gate.NewDiscovery(client, v.RestURL),
			Stats:     gate.NewStats(client, v.RestURL),
			Spot:      stream.NewClient(gate.NewSpotCodec(v.SpotWSURL), log),
			Perp:      stream.NewClient(gate.NewPerpCodec(v.PerpWSURL), log),
		})
	}
	if v := cfg.Venues.Mexc; v.Enabled {
		out = append(out, &Adapter{
			Code:      models.VenueMexc,
			Discovery: mexc.NewDiscovery(client, v.RestURL, v.PerpRestURL),
			Stats:     mexc.NewStats(client, v.RestURL, v.PerpRestURL),
			Spot:      stream.NewClient(mexc.NewSpotCodec(v.SpotWSURL, nil), log),
			Perp:      stream.NewClient(mexc.NewPerpCodec(v.PerpWSURL), log),
		})
	}
	if v := cfg.Venues.Dexscreener; v.Enabled {
		th := cfg.Discovery.Thresholds
		out = append(out, &Adapter{
			Code: models.VenueDexscreener,
			Discovery: dexscreener.NewDiscovery(
				client, v.RestURL, cfg.Discovery.DexSeedAssets,
				th.DexTvlThreshold(models.VenueDexscreener),
				th.DexVolThreshold(models.VenueDexscreener),
				th.DexMinAge, log),
			Stats: dexscreener.NewStats(client, v.RestURL),
			Spot:  dexscreener.NewPoller(client, v.RestURL, v.PollInterval, v.RequestsPerMinute, log),
		})
	}
	return out
}
