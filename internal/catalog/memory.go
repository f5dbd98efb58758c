package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"quoteflow/models"
)

// Memory is an in-process Store for tests and DSN-less runs.
type Memory struct {
	mu          sync.RWMutex
	venues      map[string]struct{}
	instruments map[string]int
	markets     map[string]Market // keyed by ID
	quality     map[string]Quality
}

func NewMemory() *Memory {
	return &Memory{
		venues:      make(map[string]struct{}),
		instruments: make(map[string]int),
		markets:     make(map[string]Market),
		quality:     make(map[string]Quality),
	}
}

func (m *Memory) EnsureVenue(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.venues[code] = struct{}{}
	return nil
}

func (m *Memory) EnsureInstrument(_ context.Context, asset string, scale int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instruments[asset]; !ok {
		m.instruments[asset] = scale
	}
	return nil
}

func (m *Memory) UpsertMarket(_ context.Context, mk Market) (Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.markets {
		if existing.Asset == mk.Asset && existing.Venue == mk.Venue && existing.Kind == mk.Kind {
			existing.NativeSymbol = mk.NativeSymbol
			existing.Status = mk.Status
			if mk.PriceScale > existing.PriceScale {
				existing.PriceScale = mk.PriceScale
			}
			if mk.QtyScale > existing.QtyScale {
				existing.QtyScale = mk.QtyScale
			}
			m.markets[id] = existing
			return existing, nil
		}
	}

	mk.ID = uuid.NewString()
	m.markets[mk.ID] = mk
	return mk, nil
}

func (m *Memory) FindMarket(_ context.Context, asset, venue string, kind models.MarketKind) (*Market, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mk := range m.markets {
		if mk.Asset == asset && mk.Venue == venue && mk.Kind == kind {
			out := mk
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListMarkets(_ context.Context) ([]Market, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Market, 0, len(m.markets))
	for _, mk := range m.markets {
		out = append(out, mk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset < out[j].Asset
		}
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

func (m *Memory) DeleteMarket(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markets, id)
	delete(m.quality, id)
	return nil
}

func (m *Memory) UpsertMarketQuality(_ context.Context, q Quality) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quality[q.MarketID] = q
	return nil
}

// MarketQuality returns the stored quality row, for tests.
func (m *Memory) MarketQuality(id string) (Quality, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quality[id]
	return q, ok
}

func (m *Memory) Close() error { return nil }
