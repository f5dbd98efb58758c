package discovery

import (
	"context"

	"quoteflow/logger"
	"quoteflow/models"
)

// CompositeStats routes stats resolution to one delegate per venue. A
// failing or missing delegate costs only its own venue's entries.
type CompositeStats struct {
	delegates map[string]models.VenueStatsClient
	log       *logger.Entry
}

func NewCompositeStats(delegates []models.VenueStatsClient, log *logger.Log) *CompositeStats {
	byVenue := make(map[string]models.VenueStatsClient, len(delegates))
	for _, d := range delegates {
		byVenue[d.Venue()] = d
	}
	return &CompositeStats{delegates: byVenue, log: log.WithComponent("stats")}
}

func (c *CompositeStats) Fetch24hStats(ctx context.Context, refs []models.MarketRef) map[models.MarketRef]models.MarketStats {
	byVenue := make(map[string][]models.MarketRef)
	for _, ref := range refs {
		byVenue[ref.Venue] = append(byVenue[ref.Venue], ref)
	}

	out := make(map[models.MarketRef]models.MarketStats, len(refs))
	for venue, venueRefs := range byVenue {
		delegate, ok := c.delegates[venue]
		if !ok {
			c.log.WithFields(logger.Fields{"venue": venue, "refs": len(venueRefs)}).
				Warn("no stats delegate for venue, dropping refs")
			continue
		}
		stats, err := delegate.Fetch(ctx, venueRefs)
		if err != nil {
			c.log.WithError(err).WithField("venue", venue).Warn("stats fetch failed")
			continue
		}
		for ref, st := range stats {
			out[ref] = st
		}
	}
	return out
}
