package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"quoteflow/logger"
	"quoteflow/models"
)

// fakeCodec speaks a trivial JSON protocol against the test server.
type fakeCodec struct {
	url       string
	chunkSize int
}

func (c *fakeCodec) Venue() string           { return "FAKE" }
func (c *fakeCodec) Kind() models.MarketKind { return models.KindSpot }
func (c *fakeCodec) ChunkSize() int          { return c.chunkSize }
func (c *fakeCodec) URL([]string) string     { return c.url }
func (c *fakeCodec) Ping() PingSpec          { return PingSpec{} }

func (c *fakeCodec) SubscribeFrames(syms []string) ([][]byte, error) {
	frame, err := json.Marshal(map[string]interface{}{"op": "subscribe", "args": syms})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (c *fakeCodec) Decode(_ int, data []byte) (*models.Tick, error) {
	var msg struct {
		Asset string `json:"asset"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Asset == "" {
		return nil, nil
	}
	return &models.Tick{Asset: msg.Asset, Venue: "FAKE", Kind: models.KindSpot}, nil
}

// collector buffers received ticks for assertions.
type collector struct {
	mu    sync.Mutex
	ticks []models.Tick
}

func (c *collector) OnTick(t models.Tick) {
	c.mu.Lock()
	c.ticks = append(c.ticks, t)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ticks)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestChunkSymbols(t *testing.T) {
	tests := []struct {
		name string
		syms []string
		size int
		want [][]string
	}{
		{"under limit", []string{"A", "B"}, 5, [][]string{{"A", "B"}}},
		{"exact limit", []string{"A", "B"}, 2, [][]string{{"A", "B"}}},
		{"split", []string{"A", "B", "C"}, 2, [][]string{{"A", "B"}, {"C"}}},
		{"no limit", []string{"A", "B", "C"}, 0, [][]string{{"A", "B", "C"}}},
	}
	for _, tt := range tests {
		got := chunkSymbols(tt.syms, tt.size)
		require.Equal(t, tt.want, got, tt.name)

		var flat []string
		for _, chunk := range got {
			if tt.size > 0 {
				require.LessOrEqual(t, len(chunk), tt.size, tt.name)
			}
			flat = append(flat, chunk...)
		}
		require.Equal(t, tt.syms, flat, "%s: chunks must be lossless and ordered", tt.name)
	}
}

// testServer accepts websocket connections, waits for the subscribe
// frame and emits one tick per subscribed symbol, then optionally drops
// the connection.
func testServer(t *testing.T, dropAfterEmit bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	conns := new(atomic.Int32)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		var sub struct {
			Op   string   `json:"op"`
			Args []string `json:"args"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		for _, sym := range sub.Args {
			payload, _ := json.Marshal(map[string]string{"asset": sym})
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
		if dropAfterEmit {
			return
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientSubscribeDeliversTicks(t *testing.T) {
	srv, _ := testServer(t, false)
	defer srv.Close()

	codec := &fakeCodec{url: wsURL(srv), chunkSize: 10}
	client := NewClient(codec, logger.Logger())
	defer client.Close()

	sink := &collector{}
	sub, err := client.SubscribeBookTicker([]string{"BTC", "ETH"}, sink)
	require.NoError(t, err)
	defer sub.Close()

	waitFor(t, 3*time.Second, func() bool { return sink.count() >= 2 })
}

func TestClientChunksAcrossConnections(t *testing.T) {
	srv, conns := testServer(t, false)
	defer srv.Close()

	codec := &fakeCodec{url: wsURL(srv), chunkSize: 2}
	client := NewClient(codec, logger.Logger())
	defer client.Close()

	sink := &collector{}
	sub, err := client.SubscribeBookTicker([]string{"A", "B", "C", "D", "E"}, sink)
	require.NoError(t, err)
	defer sub.Close()

	// 5 symbols at chunk size 2 means 3 connections.
	waitFor(t, 3*time.Second, func() bool { return sink.count() >= 5 })
	require.EqualValues(t, 3, conns.Load())
}

func TestSessionReconnects(t *testing.T) {
	srv, conns := testServer(t, true)
	defer srv.Close()

	codec := &fakeCodec{url: wsURL(srv), chunkSize: 10}
	client := NewClient(codec, logger.Logger())
	defer client.Close()

	sink := &collector{}
	sub, err := client.SubscribeBookTicker([]string{"BTC"}, sink)
	require.NoError(t, err)
	defer sub.Close()

	// The server drops every connection after one tick, so repeated
	// ticks prove the session resubscribed after reconnecting.
	waitFor(t, 5*time.Second, func() bool { return sink.count() >= 2 })
	require.GreaterOrEqual(t, int(conns.Load()), 2)
}

func TestCloseUnblocksSilentConnection(t *testing.T) {
	// A server that swallows every frame and never writes back. The
	// read loop blocks in ReadMessage, so Close must force the conn
	// shut instead of waiting for traffic.
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	codec := &fakeCodec{url: wsURL(srv), chunkSize: 10}
	client := NewClient(codec, logger.Logger())
	defer client.Close()

	sub, err := client.SubscribeBookTicker([]string{"BTC"}, &collector{})
	require.NoError(t, err)

	// Give the session time to connect and park in ReadMessage.
	time.Sleep(200 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return while the connection was idle")
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := NewClient(&fakeCodec{url: "ws://unused", chunkSize: 10}, logger.Logger())
	defer client.Close()

	if _, err := client.SubscribeBookTicker(nil, &collector{}); err == nil {
		t.Error("expected error for empty symbols")
	}
	if _, err := client.SubscribeBookTicker([]string{"BTC"}, nil); err == nil {
		t.Error("expected error for nil handler")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv, _ := testServer(t, false)
	defer srv.Close()

	codec := &fakeCodec{url: wsURL(srv), chunkSize: 10}
	client := NewClient(codec, logger.Logger())

	sub, err := client.SubscribeBookTicker([]string{"BTC"}, &collector{})
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	client.Close()
	client.Close()

	if _, err := client.SubscribeBookTicker([]string{"BTC"}, &collector{}); err == nil {
		t.Error("expected error after close")
	}
}
