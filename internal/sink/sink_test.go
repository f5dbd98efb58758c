package sink

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"quoteflow/models"
)

type countingHandler struct{ ticks []models.Tick }

func (c *countingHandler) OnTick(t models.Tick) { c.ticks = append(c.ticks, t) }

func TestMultiFansOutInOrder(t *testing.T) {
	a := &countingHandler{}
	b := &countingHandler{}
	m := NewMulti(a, nil, b)

	tick := models.Tick{
		TS:    time.Now().UTC(),
		Asset: "BTC",
		Venue: models.VenueBinance,
		Kind:  models.KindSpot,
		Mid:   decimal.NewFromInt(65000),
	}
	m.OnTick(tick)
	m.OnTick(tick)

	require.Len(t, a.ticks, 2)
	require.Len(t, b.ticks, 2)
	require.Equal(t, "BTC", a.ticks[0].Asset)
}

func TestTickSubject(t *testing.T) {
	require.Equal(t, "ticks.BTC", models.TickSubject("", "BTC"))
	require.Equal(t, "quotes.ETH", models.TickSubject("quotes", "ETH"))
}
