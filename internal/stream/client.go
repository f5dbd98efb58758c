package stream

import (
	"context"
	"fmt"
	"sync"

	"quoteflow/logger"
	"quoteflow/models"
)

// Client implements models.StreamClient on top of a venue Codec. Each
// subscription is split into chunks of at most Codec.ChunkSize symbols,
// one websocket session per chunk.
type Client struct {
	codec Codec
	log   *logger.Log

	mu     sync.Mutex
	closed bool
	subs   map[*subscription]struct{}
}

func NewClient(codec Codec, log *logger.Log) *Client {
	return &Client{
		codec: codec,
		log:   log,
		subs:  make(map[*subscription]struct{}),
	}
}

func (c *Client) SubscribeBookTicker(syms []string, handler models.TickHandler) (models.Subscription, error) {
	if len(syms) == 0 {
		return nil, fmt.Errorf("%s %s: no symbols to subscribe", c.codec.Venue(), c.codec.Kind())
	}
	if handler == nil {
		return nil, fmt.Errorf("%s %s: nil tick handler", c.codec.Venue(), c.codec.Kind())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%s %s: client closed", c.codec.Venue(), c.codec.Kind())
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{client: c, cancel: cancel}

	for _, chunk := range chunkSymbols(syms, c.codec.ChunkSize()) {
		sess := newSession(c.codec, chunk, handler, c.log)
		sub.wg.Add(1)
		go func() {
			defer sub.wg.Done()
			sess.run(ctx)
		}()
	}

	c.subs[sub] = struct{}{}
	return sub, nil
}

// Close cancels all live subscriptions. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (c *Client) remove(sub *subscription) {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
}

type subscription struct {
	client *Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Close stops every session of this subscription and waits for them to
// exit. Idempotent.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.client.remove(s)
	})
}

// chunkSymbols splits syms into slices of at most size elements,
// preserving order. size <= 0 means one chunk.
func chunkSymbols(syms []string, size int) [][]string {
	if size <= 0 || len(syms) <= size {
		return [][]string{syms}
	}
	chunks := make([][]string, 0, (len(syms)+size-1)/size)
	for start := 0; start < len(syms); start += size {
		end := start + size
		if end > len(syms) {
			end = len(syms)
		}
		chunks = append(chunks, syms[start:end])
	}
	return chunks
}
