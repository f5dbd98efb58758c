// Package streamer keeps one book-ticker subscription per venue and
// kind, resubscribing whenever discovery changes the accepted market
// set.
package streamer

import (
	"sort"
	"sync"

	"quoteflow/internal/catalog"
	"quoteflow/internal/metrics"
	"quoteflow/internal/venues"
	"quoteflow/logger"
	"quoteflow/models"
)

type streamKey struct {
	venue string
	kind  models.MarketKind
}

type activeStream struct {
	symbols []string
	sub     models.Subscription
}

// Streamer owns the live subscriptions. Apply is called with each
// discovery cycle's accepted set; only streams whose symbol list
// actually changed are torn down and reopened.
type Streamer struct {
	adapters map[string]*venues.Adapter
	sink     models.TickHandler
	log      *logger.Entry

	// applyMu serializes Apply and Close so reconciliation never
	// races with teardown.
	applyMu sync.Mutex

	// mu guards the maps only. It must never be held across
	// sub.Close or SubscribeBookTicker: closing a subscription waits
	// for in-flight OnTick calls, which take mu themselves.
	mu      sync.Mutex
	active  map[streamKey]*activeStream
	markets map[models.MarketRef]string
	closed  bool
}

func New(adapters []*venues.Adapter, sink models.TickHandler, log *logger.Log) *Streamer {
	byCode := make(map[string]*venues.Adapter, len(adapters))
	for _, a := range adapters {
		byCode[a.Code] = a
	}
	return &Streamer{
		adapters: byCode,
		sink:     sink,
		log:      log.WithComponent("streamer"),
		active:   make(map[streamKey]*activeStream),
		markets:  make(map[models.MarketRef]string),
	}
}

// OnTick resolves the catalog market ID before forwarding to the sink.
func (s *Streamer) OnTick(t models.Tick) {
	ref := models.MarketRef{Asset: t.Asset, Venue: t.Venue, Kind: t.Kind, NativeSymbol: t.NativeSymbol}
	s.mu.Lock()
	t.MarketID = s.markets[ref]
	s.mu.Unlock()
	s.sink.OnTick(t)
}

// Apply reconciles the live subscriptions against the accepted set.
func (s *Streamer) Apply(rows []catalog.Market) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	desired := make(map[streamKey][]string)
	marketIDs := make(map[models.MarketRef]string, len(rows))
	for _, m := range rows {
		k := streamKey{m.Venue, m.Kind}
		desired[k] = append(desired[k], m.NativeSymbol)
		marketIDs[models.MarketRef{Asset: m.Asset, Venue: m.Venue, Kind: m.Kind, NativeSymbol: m.NativeSymbol}] = m.ID
	}
	for _, symbols := range desired {
		sort.Strings(symbols)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.markets = marketIDs

	stale := make(map[streamKey]*activeStream)
	kept := make(map[streamKey]bool, len(s.active))
	for key, stream := range s.active {
		if symbols, ok := desired[key]; ok && equalSymbols(symbols, stream.symbols) {
			kept[key] = true
			continue
		}
		stale[key] = stream
		delete(s.active, key)
	}
	s.mu.Unlock()

	for key, stream := range stale {
		stream.sub.Close()
		s.log.WithFields(logger.Fields{"venue": key.venue, "kind": string(key.kind)}).Info("stream stopped")
	}

	for key, symbols := range desired {
		if kept[key] {
			continue
		}
		client := s.clientFor(key)
		if client == nil {
			s.log.WithFields(logger.Fields{"venue": key.venue, "kind": string(key.kind)}).
				Warn("no stream client for accepted markets")
			continue
		}
		sub, err := client.SubscribeBookTicker(symbols, s)
		if err != nil {
			s.log.WithError(err).WithFields(logger.Fields{
				"venue": key.venue, "kind": string(key.kind), "symbols": len(symbols),
			}).Error("subscribe failed")
			continue
		}
		s.mu.Lock()
		s.active[key] = &activeStream{symbols: symbols, sub: sub}
		s.mu.Unlock()
		s.log.WithFields(logger.Fields{
			"venue": key.venue, "kind": string(key.kind), "symbols": len(symbols),
		}).Info("stream started")
	}

	s.mu.Lock()
	streams := len(s.active)
	s.mu.Unlock()
	metrics.Gauge("streamer", "active_streams", float64(streams), nil)
}

func (s *Streamer) clientFor(key streamKey) models.StreamClient {
	adapter, ok := s.adapters[key.venue]
	if !ok {
		return nil
	}
	switch key.kind {
	case models.KindSpot, models.KindDex:
		return adapter.Spot
	case models.KindPerp, models.KindFutures:
		return adapter.Perp
	default:
		return nil
	}
}

// Close tears down every live subscription. Further Apply calls are
// no-ops.
func (s *Streamer) Close() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stale := s.active
	s.active = make(map[streamKey]*activeStream)
	s.mu.Unlock()

	for _, stream := range stale {
		stream.sub.Close()
	}
}

func equalSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
