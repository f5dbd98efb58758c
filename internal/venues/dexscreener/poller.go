package dexscreener

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"quoteflow/internal/fetch"
	"quoteflow/internal/symbols"
	"quoteflow/logger"
	"quoteflow/models"
)

const (
	defaultPollInterval      = 2 * time.Second
	defaultRequestsPerMinute = 300
)

// Poller implements models.StreamClient by polling each subscribed pool
// page. All pools share one rate limiter so the adapter stays inside
// the public API budget regardless of pool count.
type Poller struct {
	client       *fetch.Client
	restURL      string
	pollInterval time.Duration
	limiter      *rate.Limiter
	log          *logger.Entry

	mu     sync.Mutex
	closed bool
	subs   map[*pollSubscription]struct{}
}

func NewPoller(client *fetch.Client, restURL string, pollInterval time.Duration, requestsPerMinute int, log *logger.Log) *Poller {
	if restURL == "" {
		restURL = RestURL
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	return &Poller{
		client:       client,
		restURL:      restURL,
		pollInterval: pollInterval,
		limiter:      rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute/10+1),
		log:          log.WithComponent("dexscreener"),
		subs:         make(map[*pollSubscription]struct{}),
	}
}

func (p *Poller) SubscribeBookTicker(nativeSymbols []string, handler models.TickHandler) (models.Subscription, error) {
	if len(nativeSymbols) == 0 {
		return nil, fmt.Errorf("dexscreener: no pools to subscribe")
	}
	if handler == nil {
		return nil, fmt.Errorf("dexscreener: nil tick handler")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("dexscreener: poller closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &pollSubscription{poller: p, cancel: cancel}

	for _, native := range nativeSymbols {
		chain, pairAddress, err := symbols.SplitPool(native)
		if err != nil {
			cancel()
			return nil, err
		}
		sub.wg.Add(1)
		go func(native, chain, pairAddress string) {
			defer sub.wg.Done()
			p.pollLoop(ctx, native, chain, pairAddress, handler)
		}(native, chain, pairAddress)
	}

	p.subs[sub] = struct{}{}
	return sub, nil
}

func (p *Poller) pollLoop(ctx context.Context, native, chain, pairAddress string, handler models.TickHandler) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		p.pollOne(ctx, native, chain, pairAddress, handler)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollOne(ctx context.Context, native, chain, pairAddress string, handler models.TickHandler) {
	pr, err := getPair(ctx, p.client, p.restURL, chain, pairAddress)
	if err != nil {
		// Polling tolerates transient fetch failures.
		p.log.WithError(err).WithFields(logger.Fields{"pool": native}).Debug("pool poll failed")
		return
	}
	if pr == nil || pr.PriceUsd == "" {
		return
	}

	mid, err := decimal.NewFromString(pr.PriceUsd)
	if err != nil || !mid.IsPositive() {
		return
	}

	now := time.Now().UTC()
	ts := now
	if pr.UpdatedAt > 0 {
		ts = time.UnixMilli(pr.UpdatedAt).UTC()
	}

	// No order book on a pool page: bid and ask collapse to mid.
	side := decimal.NullDecimal{Decimal: mid, Valid: true}
	handler.OnTick(models.Tick{
		TS:           ts,
		Asset:        strings.ToUpper(pr.BaseToken.Symbol),
		Venue:        models.VenueDexscreener,
		Kind:         models.KindDex,
		Bid:          side,
		Ask:          side,
		Mid:          mid,
		HeartbeatTS:  now,
		NativeSymbol: native,
	})
}

// Close stops every poll loop. Safe to call more than once.
func (p *Poller) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subs := make([]*pollSubscription, 0, len(p.subs))
	for sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (p *Poller) remove(sub *pollSubscription) {
	p.mu.Lock()
	delete(p.subs, sub)
	p.mu.Unlock()
}

type pollSubscription struct {
	poller *Poller
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (s *pollSubscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.poller.remove(s)
	})
}
