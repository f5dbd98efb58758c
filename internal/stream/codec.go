// Package stream runs websocket book-ticker sessions against a venue
// through a per-venue Codec. The session owns connection lifecycle,
// subscription, keepalive and reconnects; the codec owns the wire
// format.
package stream

import (
	"time"

	"quoteflow/models"
)

// PingSpec describes a venue's application-level keepalive. A nil
// Payload means the venue needs no application ping; the transport
// still answers protocol pings automatically.
type PingSpec struct {
	Payload  []byte
	Interval time.Duration
}

// Codec describes one venue's book-ticker stream protocol.
type Codec interface {
	// Venue returns the venue code, used for logging and tick labels.
	Venue() string

	// Kind is the market kind this codec streams.
	Kind() models.MarketKind

	// ChunkSize is the maximum number of symbols one connection may
	// carry. Subscriptions above this limit are split across
	// connections.
	ChunkSize() int

	// URL builds the websocket endpoint for a chunk of native symbols.
	URL(symbols []string) string

	// SubscribeFrames builds the frames to send after connecting. May
	// be empty when the URL itself carries the subscription.
	SubscribeFrames(symbols []string) ([][]byte, error)

	// Ping returns the venue keepalive spec.
	Ping() PingSpec

	// Decode parses one websocket message into a tick. Control frames,
	// acks and unparseable noise return (nil, nil); a returned error
	// signals a venue-contract violation that must be surfaced.
	Decode(messageType int, data []byte) (*models.Tick, error)
}
