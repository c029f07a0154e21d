// Package eventbus is the asynchronous fact transport between services.
// Delivery is fire-and-forget: at most once per subscriber, no persistence,
// no replay. A missed event self-heals through the sweeper's next tick or a
// later mutation on the same seat.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event channel names shared by publishers and subscribers.
const (
	SeatHeld                 = "seat.held"
	SeatReleased             = "seat.released"
	SeatConfirmed            = "seat.confirmed"
	SeatHoldExpired          = "seat.hold.expired"
	WaitlistJoined           = "waitlist.joined"
	WaitlistLeft             = "waitlist.left"
	WaitlistCheckinCompleted = "waitlist.checkin.completed"
)

// Envelope wraps every published payload with the event's identity.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

type Handler func(ctx context.Context, ev Envelope) error

// Transport delivers raw bytes on named channels.
type Transport interface {
	Publish(ctx context.Context, channel string, body []byte) error
	// Consume subscribes to channels and invokes deliver for every message
	// until ctx is cancelled. It closes ready once every subscription is
	// active; delivery is not guaranteed before that point.
	Consume(
		ctx context.Context,
		channels []string,
		ready chan<- struct{},
		deliver func(channel string, body []byte),
	) error
}

// Bus owns an explicit subscription registry. It is constructed and
// injected, never ambient, so independent bus instances can coexist.
type Bus struct {
	tr     Transport
	source string
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	ready chan struct{}
}

func New(tr Transport, source string, logger *slog.Logger) *Bus {
	return &Bus{
		tr:       tr,
		source:   source,
		logger:   logger,
		handlers: make(map[string][]Handler),
		ready:    make(chan struct{}),
	}
}

// Publish wraps payload in an envelope and hands it to the transport.
// There is no acknowledgement; an error means the send itself failed.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) error {
	const op = "eventbus.Bus.Publish"

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	ev := Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    b.source,
		Payload:   raw,
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := b.tr.Publish(ctx, eventType, body); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	b.logger.Info("event published", "type", eventType, "event_id", ev.ID)

	return nil
}

// Subscribe registers a handler for an event type. Registration must happen
// before Run; handlers for the same type fan out independently.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Ready is closed once the transport confirms every subscription. Callers
// that depend on delivery must wait on it before assuming events arrive.
func (b *Bus) Ready() <-chan struct{} {
	return b.ready
}

// Run drives the consumer side until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.RLock()
	channels := make([]string, 0, len(b.handlers))
	for ch := range b.handlers {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	if len(channels) == 0 {
		close(b.ready)
		<-ctx.Done()
		return ctx.Err()
	}

	return b.tr.Consume(ctx, channels, b.ready, func(channel string, body []byte) {
		b.dispatch(ctx, channel, body)
	})
}

func (b *Bus) dispatch(ctx context.Context, channel string, body []byte) {
	var ev Envelope
	if err := json.Unmarshal(body, &ev); err != nil {
		b.logger.Error("event decode failed", "channel", channel, "error", err)
		return
	}

	b.mu.RLock()
	handlers := b.handlers[channel]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(ctx, h, ev)
	}
}

// invoke isolates one handler: a failure or panic is logged and never
// reaches the other handlers for the same event.
func (b *Bus) invoke(ctx context.Context, h Handler, ev Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic",
				"type", ev.Type, "event_id", ev.ID, "panic", r)
		}
	}()

	if err := h(ctx, ev); err != nil {
		b.logger.Error("event handler failed",
			"type", ev.Type, "event_id", ev.ID, "error", err)
	}
}
