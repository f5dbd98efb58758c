package discovery

import (
	"context"
	"time"

	"quoteflow/config"
	"quoteflow/internal/catalog"
	"quoteflow/internal/metrics"
	"quoteflow/logger"
	"quoteflow/models"
)

// VenueSource is one venue's discovery client, tagged with its code for
// logging.
type VenueSource struct {
	Venue  string
	Client models.DiscoveryClient
}

// Orchestrator runs the discovery cycle: listings per venue, 24h stats,
// threshold filter, anchor rule, best-of dedup, persist.
type Orchestrator struct {
	sources []VenueSource
	stats   models.StatsClient
	store   catalog.Store
	cfg     config.DiscoveryConfig
	scorer  *Scorer
	log     *logger.Entry
}

func NewOrchestrator(sources []VenueSource, stats models.StatsClient, store catalog.Store, cfg config.DiscoveryConfig, log *logger.Log) *Orchestrator {
	return &Orchestrator{
		sources: sources,
		stats:   stats,
		store:   store,
		cfg:     cfg,
		scorer:  NewScorer(cfg.Thresholds, cfg.Quality),
		log:     log.WithComponent("discovery"),
	}
}

// candidate pairs a listing with its resolved stats during filtering.
type candidate struct {
	listing models.VenueListing
	stats   models.MarketStats
}

// RunOnce executes one discovery cycle and returns the accepted market
// rows. An empty merged listing set is a no-op; previously persisted
// state stays authoritative.
func (o *Orchestrator) RunOnce(ctx context.Context) ([]catalog.Market, error) {
	started := time.Now()

	listings := o.collectListings(ctx)
	if len(listings) == 0 {
		o.log.Warn("no listings from any venue, skipping cycle")
		return nil, nil
	}

	refs := make([]models.MarketRef, 0, len(listings))
	seen := make(map[models.MarketRef]struct{}, len(listings))
	for _, l := range listings {
		ref := l.Ref()
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	stats := o.stats.Fetch24hStats(ctx, refs)

	passing, anchors := o.thresholdFilter(listings, stats)
	accepted := dedupBest(applyAnchorRule(passing, anchors))

	rows, err := o.persist(ctx, listings, accepted)
	if err != nil {
		return nil, err
	}

	o.log.WithFields(logger.Fields{
		"listings": len(listings),
		"stats":    len(stats),
		"accepted": len(rows),
		"took":     time.Since(started).String(),
	}).Info("discovery cycle complete")
	metrics.Gauge("discovery", "accepted_markets", float64(len(rows)), nil)
	return rows, nil
}

// Run executes RunOnce on the configured refresh period until the
// context is cancelled, passing each cycle's accepted set to onCycle.
func (o *Orchestrator) Run(ctx context.Context, onCycle func([]catalog.Market)) {
	ticker := time.NewTicker(o.cfg.Refresh)
	defer ticker.Stop()

	for {
		rows, err := o.RunOnce(ctx)
		if err != nil {
			o.log.WithError(err).Error("discovery cycle failed")
		} else if rows != nil && onCycle != nil {
			onCycle(rows)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// collectListings queries every venue, isolating per-venue faults.
func (o *Orchestrator) collectListings(ctx context.Context) []models.VenueListing {
	var out []models.VenueListing
	for _, src := range o.sources {
		spot, err := src.Client.ListSpotUSDT(ctx)
		if err != nil {
			o.log.WithError(err).WithFields(logger.Fields{"venue": src.Venue}).Warn("spot listing fetch failed")
		} else {
			out = append(out, spot...)
		}

		perp, err := src.Client.ListPerpUSDT(ctx)
		if err != nil {
			o.log.WithError(err).WithFields(logger.Fields{"venue": src.Venue}).Warn("perp listing fetch failed")
		} else {
			out = append(out, perp...)
		}
	}
	return out
}

// thresholdFilter keeps the listings whose 24h stats clear the effective
// per-kind threshold and records which assets gained a spot/DEX anchor.
// A listing without stats is dropped, not treated as zero volume.
func (o *Orchestrator) thresholdFilter(listings []models.VenueListing, stats map[models.MarketRef]models.MarketStats) ([]candidate, map[string]bool) {
	th := o.cfg.Thresholds
	var passing []candidate
	anchors := make(map[string]bool)

	for _, l := range listings {
		st, ok := stats[l.Ref()]
		if !ok {
			continue
		}
		vol := st.Vol24hUSD.InexactFloat64()

		switch l.Kind {
		case models.KindSpot:
			if vol >= th.SpotVolThreshold(l.Venue) {
				passing = append(passing, candidate{l, st})
				anchors[l.Base] = true
			}
		case models.KindPerp, models.KindFutures:
			if vol >= th.PerpVolThreshold(l.Venue) {
				passing = append(passing, candidate{l, st})
			}
		case models.KindDex:
			if vol < th.DexVolThreshold(l.Venue) {
				continue
			}
			if !st.LiquidityUSD.Valid || st.LiquidityUSD.Decimal.InexactFloat64() < th.DexTvlThreshold(l.Venue) {
				continue
			}
			passing = append(passing, candidate{l, st})
			anchors[l.Base] = true
		}
	}
	return passing, anchors
}

// applyAnchorRule drops derivative markets whose asset has no passing
// spot or DEX market this cycle.
func applyAnchorRule(passing []candidate, anchors map[string]bool) []candidate {
	out := passing[:0]
	for _, c := range passing {
		if c.listing.Kind.Derivative() && !anchors[c.listing.Base] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dedupBest keeps one candidate per (asset, venue, kind): the one with
// the higher 24h volume, ties broken for DEX by higher liquidity. Input
// order is deterministic, so the result is too.
func dedupBest(passing []candidate) []candidate {
	type key struct {
		asset string
		venue string
		kind  models.MarketKind
	}
	best := make(map[key]int)
	var out []candidate

	for _, c := range passing {
		k := key{c.listing.Base, c.listing.Venue, c.listing.Kind}
		idx, ok := best[k]
		if !ok {
			best[k] = len(out)
			out = append(out, c)
			continue
		}
		cur := out[idx]
		cmp := c.stats.Vol24hUSD.Cmp(cur.stats.Vol24hUSD)
		if cmp > 0 {
			out[idx] = c
			continue
		}
		if cmp == 0 && c.listing.Kind == models.KindDex &&
			c.stats.LiquidityUSD.Valid && cur.stats.LiquidityUSD.Valid &&
			c.stats.LiquidityUSD.Decimal.GreaterThan(cur.stats.LiquidityUSD.Decimal) {
			out[idx] = c
		}
	}
	return out
}

// persist upserts venue and instrument rows for everything listed,
// market and quality rows for the accepted set, and optionally removes
// markets that fell out of it.
func (o *Orchestrator) persist(ctx context.Context, listings []models.VenueListing, accepted []candidate) ([]catalog.Market, error) {
	venuesSeen := make(map[string]struct{})
	assetsSeen := make(map[string]struct{})
	for _, l := range listings {
		if _, ok := venuesSeen[l.Venue]; !ok {
			venuesSeen[l.Venue] = struct{}{}
			if err := o.store.EnsureVenue(ctx, l.Venue); err != nil {
				return nil, err
			}
		}
		if _, ok := assetsSeen[l.Base]; !ok {
			assetsSeen[l.Base] = struct{}{}
			if err := o.store.EnsureInstrument(ctx, l.Base, l.PriceScale); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now().UTC()
	rows := make([]catalog.Market, 0, len(accepted))
	acceptedKeys := make(map[string]struct{}, len(accepted))
	for _, c := range accepted {
		l := c.listing
		row, err := o.store.UpsertMarket(ctx, catalog.Market{
			Asset:        l.Base,
			Venue:        l.Venue,
			Kind:         l.Kind,
			NativeSymbol: l.NativeSymbol,
			PriceScale:   l.PriceScale,
			QtyScale:     l.QtyScale,
			Status:       l.Status,
		})
		if err != nil {
			return nil, err
		}

		score := o.scorer.Score(l.Venue, l.Kind,
			c.stats.Vol24hUSD.InexactFloat64(), 0,
			dexTvl(c.stats), o.cfg.Thresholds.DexMinAge.Hours())
		if err := o.store.UpsertMarketQuality(ctx, catalog.Quality{
			MarketID:     row.ID,
			Vol24hUSD:    c.stats.Vol24hUSD,
			LiquidityUSD: c.stats.LiquidityUSD,
			Score:        score,
			AsOf:         now,
		}); err != nil {
			return nil, err
		}

		rows = append(rows, row)
		acceptedKeys[marketKey(l.Base, l.Venue, l.Kind)] = struct{}{}
	}

	if o.cfg.DeleteStale {
		existing, err := o.store.ListMarkets(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range existing {
			if _, ok := acceptedKeys[marketKey(m.Asset, m.Venue, m.Kind)]; ok {
				continue
			}
			if err := o.store.DeleteMarket(ctx, m.ID); err != nil {
				return nil, err
			}
			o.log.WithFields(logger.Fields{
				"asset": m.Asset, "venue": m.Venue, "kind": string(m.Kind),
			}).Info("removed stale market")
		}
	}
	return rows, nil
}

func marketKey(asset, venue string, kind models.MarketKind) string {
	return asset + "|" + venue + "|" + string(kind)
}

func dexTvl(st models.MarketStats) float64 {
	if st.LiquidityUSD.Valid {
		return st.LiquidityUSD.Decimal.InexactFloat64()
	}
	return 0
}
