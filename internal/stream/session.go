package stream

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"quoteflow/internal/metrics"
	"quoteflow/internal/symbols"
	"quoteflow/logger"
	"quoteflow/models"
)

const (
	// reconnectDelay is deliberately fixed. Venue endpoints recover
	// quickly and a flat delay keeps resubscription latency bounded.
	reconnectDelay = time.Second

	writeTimeout = time.Second
	dialTimeout  = 10 * time.Second
)

// session drives one websocket connection for a chunk of symbols and
// keeps it alive until its context is cancelled.
type session struct {
	codec   Codec
	symbols []string
	handler models.TickHandler
	log     *logger.Entry
}

func newSession(codec Codec, syms []string, handler models.TickHandler, log *logger.Log) *session {
	return &session{
		codec:   codec,
		symbols: syms,
		handler: handler,
		log: log.WithComponent("stream").WithFields(logger.Fields{
			"venue":   codec.Venue(),
			"kind":    string(codec.Kind()),
			"symbols": len(syms),
		}),
	}
}

// run connects, subscribes and reads until ctx is cancelled,
// reconnecting after a fixed delay on any failure.
func (s *session) run(ctx context.Context) {
	url := s.codec.URL(s.symbols)
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}

	for {
		if ctx.Err() != nil {
			return
		}

		s.runConn(ctx, dialer, url)

		if ctx.Err() != nil {
			return
		}
		metrics.Count("stream", "reconnects", 1, logger.Fields{"venue": s.codec.Venue()})
		if waitForReconnect(ctx, reconnectDelay) {
			return
		}
	}
}

// runConn drives a single connection from dial to close. Closing the
// conn is the only way to interrupt a blocked ReadMessage, so a watcher
// goroutine closes it as soon as ctx is cancelled.
func (s *session) runConn(ctx context.Context, dialer *websocket.Dialer, url string) {
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"url": url}).Warn("failed to connect to venue websocket")
		return
	}
	defer conn.Close()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	if err := s.subscribe(conn); err != nil {
		s.log.WithError(err).Warn("failed to subscribe")
		return
	}

	if pingCancel := s.startPingLoop(ctx, conn); pingCancel != nil {
		defer pingCancel()
	}

	if err := s.readLoop(ctx, conn); err != nil && ctx.Err() == nil {
		s.log.WithError(err).Warn("websocket read loop ended")
	}
}

func (s *session) subscribe(conn *websocket.Conn) error {
	frames, err := s.codec.SubscribeFrames(s.symbols)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) startPingLoop(ctx context.Context, conn *websocket.Conn) context.CancelFunc {
	spec := s.codec.Ping()
	if spec.Payload == nil || spec.Interval <= 0 {
		return nil
	}
	pingCtx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(spec.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, spec.Payload); err != nil {
					s.log.WithError(err).Warn("failed to send venue ping")
					cancel()
					return
				}
			}
		}
	}()
	return cancel
}

func (s *session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		tick, err := s.codec.Decode(msgType, msg)
		if err != nil {
			// A wrong quote suffix means the venue sent an instrument
			// we never subscribed to. Everything else is frame noise.
			if errors.Is(err, symbols.ErrQuoteSuffix) {
				s.log.WithError(err).Error("venue sent unexpected symbol")
			} else {
				s.log.WithError(err).Debug("dropping undecodable frame")
			}
			metrics.Count("stream", "frames_dropped", 1, logger.Fields{"venue": s.codec.Venue()})
			continue
		}
		if tick == nil {
			continue
		}
		metrics.Count("stream", "ticks_decoded", 1, logger.Fields{"venue": s.codec.Venue()})
		s.handler.OnTick(*tick)
	}
}

func waitForReconnect(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
