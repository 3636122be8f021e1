// Package bus is the thin websocket subscriber feeding the dispatcher. The
// transport delivers named events at least once, unordered across types but
// in order within a connection, and the subscriber preserves that order by
// dispatching frames synchronously as they are read.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the wire frame published by the backend.
type Message struct {
	Event string          `json:"event"`
	Extra json.RawMessage `json:"extra"`
}

// Handler processes one notification frame.
type Handler func(ctx context.Context, payload json.RawMessage) error

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Subscriber maintains a websocket connection and routes frames to the
// registered handlers.
type Subscriber struct {
	url      string
	dialer   *websocket.Dialer
	logger   *slog.Logger
	handlers map[string]Handler
}

// NewSubscriber constructs a subscriber for the given websocket URL. A nil
// logger falls back to slog.Default.
func NewSubscriber(url string, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		url:      url,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Subscribe registers a handler for an event name. Later registrations for
// the same name replace earlier ones.
func (s *Subscriber) Subscribe(event string, handler Handler) {
	s.handlers[event] = handler
}

// SubscribeAll registers a whole handler table.
func (s *Subscriber) SubscribeAll(handlers map[string]Handler) {
	for event, handler := range handlers {
		s.handlers[event] = handler
	}
}

// Run connects and reads frames until the context is cancelled, reconnecting
// with capped exponential backoff on connection loss. Handler errors are
// logged, never fatal: a failed notification is scoped to itself.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.logger.Warn("websocket dial failed", "url", s.url, "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		s.logger.Info("websocket connected", "url", s.url)
		backoff = initialBackoff
		err = s.readLoop(ctx, conn)
		conn.Close()
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("websocket connection lost", "err", err)
	}
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			s.logger.Warn("discarding malformed frame", "err", err)
			continue
		}
		handler, ok := s.handlers[msg.Event]
		if !ok {
			continue
		}
		if err := handler(ctx, msg.Extra); err != nil {
			s.logger.Error("notification handler failed", "event", msg.Event, "err", err)
		}
	}
}
