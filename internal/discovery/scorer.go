// Package discovery runs the periodic market discovery cycle: list
// instruments per venue, resolve 24h stats, filter, and persist the
// accepted market set.
package discovery

import (
	"quoteflow/config"
	"quoteflow/models"
)

const (
	volRatioCap   = 5.0
	depthRatioCap = 3.0

	dexTvlWeight = 0.7
	dexAgeWeight = 0.3
)

// Scorer computes the advisory quality score attached to each accepted
// market. The score never gates inclusion.
type Scorer struct {
	thresholds config.ThresholdsConfig
	volWeight  float64
	depthW     float64
}

func NewScorer(th config.ThresholdsConfig, q config.QualityConfig) *Scorer {
	return &Scorer{thresholds: th, volWeight: q.VolWeight, depthW: q.DepthWeight}
}

// safeRatio normalizes value against min, capped at cap multiples of
// min. A non-positive min yields the full ratio.
func safeRatio(value, min, cap float64) float64 {
	if min <= 0 {
		return 1.0
	}
	r := value / min
	if r < 0 {
		r = 0
	}
	if r > cap {
		r = cap
	}
	return r / cap
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Score combines a volume ratio and a depth ratio into [0,1]. For DEX
// markets the depth term blends pool TVL with pool age; for CEX markets
// depth50 is unavailable upstream and passed as zero.
func (s *Scorer) Score(venue string, kind models.MarketKind, vol24hUSD, depth50USD, dexTvlUSD, dexAgeHours float64) float64 {
	volRatio := safeRatio(vol24hUSD, s.thresholds.VolThreshold(venue, kind), volRatioCap)

	var depthRatio float64
	switch {
	case kind == models.KindDex:
		tvlRatio := safeRatio(dexTvlUSD, s.thresholds.DexTvlThreshold(venue), depthRatioCap)
		minAgeHours := s.thresholds.DexMinAge.Hours()
		ageRatio := 1.0
		if minAgeHours > 0 {
			ageRatio = clamp01(dexAgeHours / minAgeHours)
		}
		depthRatio = dexTvlWeight*tvlRatio + dexAgeWeight*ageRatio
	case depth50USD > 0:
		depthRatio = safeRatio(depth50USD, s.thresholds.VolThreshold(venue, kind), depthRatioCap)
	}

	return clamp01(s.depthW*depthRatio + s.volWeight*volRatio)
}
