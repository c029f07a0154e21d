package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeTransport struct {
	published map[string][][]byte
	queued    []struct {
		channel string
		body    []byte
	}
	consumed []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{published: make(map[string][][]byte)}
}

func (t *fakeTransport) Publish(ctx context.Context, channel string, body []byte) error {
	t.published[channel] = append(t.published[channel], body)
	return nil
}

func (t *fakeTransport) Consume(
	ctx context.Context,
	channels []string,
	ready chan<- struct{},
	deliver func(channel string, body []byte),
) error {
	t.consumed = channels
	close(ready)
	for _, m := range t.queued {
		deliver(m.channel, m.body)
	}
	<-ctx.Done()
	return ctx.Err()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBus_PublishWrapsEnvelope(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr, "skyhold-test", testLogger())

	if err := b.Publish(context.Background(), SeatHeld, SeatEvent{
		SeatID:   "12A",
		FlightID: "FL123",
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	bodies := tr.published[SeatHeld]
	if len(bodies) != 1 {
		t.Fatalf("expected one message on %q, got %d", SeatHeld, len(bodies))
	}

	var ev Envelope
	if err := json.Unmarshal(bodies[0], &ev); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if ev.ID == "" {
		t.Fatal("envelope id is empty")
	}
	if ev.Type != SeatHeld {
		t.Fatalf("envelope type = %q, want %q", ev.Type, SeatHeld)
	}
	if ev.Source != "skyhold-test" {
		t.Fatalf("envelope source = %q, want skyhold-test", ev.Source)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("envelope timestamp is zero")
	}

	var p SeatEvent
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.SeatID != "12A" || p.FlightID != "FL123" {
		t.Fatalf("payload round-trip mismatch: %+v", p)
	}
}

func TestBus_RunDeliversToSubscribers(t *testing.T) {
	tr := newFakeTransport()

	body, _ := json.Marshal(Envelope{ID: "e1", Type: SeatReleased, Payload: json.RawMessage(`{}`)})
	tr.queued = append(tr.queued, struct {
		channel string
		body    []byte
	}{SeatReleased, body})

	b := New(tr, "skyhold-test", testLogger())

	got := make(chan Envelope, 1)
	b.Subscribe(SeatReleased, func(ctx context.Context, ev Envelope) error {
		got <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case <-b.Ready():
	case <-time.After(time.Second):
		t.Fatal("bus never became ready")
	}

	select {
	case ev := <-got:
		if ev.ID != "e1" {
			t.Fatalf("delivered event id = %q, want e1", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}

	if len(tr.consumed) != 1 || tr.consumed[0] != SeatReleased {
		t.Fatalf("consumed channels = %v, want [%s]", tr.consumed, SeatReleased)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run never returned after cancel")
	}
}

func TestBus_HandlerFailureIsIsolated(t *testing.T) {
	b := New(newFakeTransport(), "skyhold-test", testLogger())

	var calls []string
	b.Subscribe(SeatHoldExpired, func(ctx context.Context, ev Envelope) error {
		calls = append(calls, "panicking")
		panic("boom")
	})
	b.Subscribe(SeatHoldExpired, func(ctx context.Context, ev Envelope) error {
		calls = append(calls, "failing")
		return errors.New("handler error")
	})
	b.Subscribe(SeatHoldExpired, func(ctx context.Context, ev Envelope) error {
		calls = append(calls, "healthy")
		return nil
	})

	body, _ := json.Marshal(Envelope{ID: "e2", Type: SeatHoldExpired, Payload: json.RawMessage(`{}`)})
	b.dispatch(context.Background(), SeatHoldExpired, body)

	if len(calls) != 3 {
		t.Fatalf("expected all three handlers to run, got %v", calls)
	}
	if calls[2] != "healthy" {
		t.Fatalf("healthy handler did not run last: %v", calls)
	}
}

func TestBus_MalformedMessageIsDropped(t *testing.T) {
	b := New(newFakeTransport(), "skyhold-test", testLogger())

	called := false
	b.Subscribe(SeatHeld, func(ctx context.Context, ev Envelope) error {
		called = true
		return nil
	})

	b.dispatch(context.Background(), SeatHeld, []byte("not json"))

	if called {
		t.Fatal("handler ran for malformed message")
	}
}
