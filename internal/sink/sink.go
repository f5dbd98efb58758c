// Package sink fans decoded ticks out to the configured consumers.
package sink

import "quoteflow/models"

// Multi dispatches each tick to every underlying handler, in order.
// Handlers are expected to be fast; anything slow must buffer
// internally.
type Multi struct {
	handlers []models.TickHandler
}

func NewMulti(handlers ...models.TickHandler) *Multi {
	kept := make([]models.TickHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			kept = append(kept, h)
		}
	}
	return &Multi{handlers: kept}
}

func (m *Multi) OnTick(t models.Tick) {
	for _, h := range m.handlers {
		h.OnTick(t)
	}
}
