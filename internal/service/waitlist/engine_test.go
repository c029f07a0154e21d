package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/avdeenko/skyhold/internal/client"
	"github.com/avdeenko/skyhold/internal/domain"
	"github.com/avdeenko/skyhold/internal/eventbus"
	"github.com/avdeenko/skyhold/internal/repository"
)

type fakeClaimStore struct {
	entries []*domain.WaitlistEntry
	claims  int
}

func (s *fakeClaimStore) ClaimTop(ctx context.Context, flightID, seatID string) (*domain.WaitlistEntry, error) {
	s.claims++
	if len(s.entries) == 0 {
		return nil, repository.ErrNotFound
	}
	e := s.entries[0]
	s.entries = s.entries[1:]
	return e, nil
}

type fakeCheckin struct {
	failFor map[string]bool
	calls   []string
}

func (c *fakeCheckin) CompleteCheckin(ctx context.Context, req client.CompleteCheckinRequest) (*client.CompleteCheckinResponse, error) {
	c.calls = append(c.calls, req.PassengerID)
	if c.failFor[req.PassengerID] {
		return nil, errors.New("checkin service unavailable")
	}
	return &client.CompleteCheckinResponse{
		CheckInID: req.CheckInID,
		State:     "COMPLETED",
		BoardingPass: &domain.BoardingPass{
			PassengerID: req.PassengerID,
			SeatNumber:  req.SeatID,
		},
	}, nil
}

type fakeNotifier struct {
	sent []client.NotificationRequest
}

func (n *fakeNotifier) Send(ctx context.Context, req client.NotificationRequest) {
	n.sent = append(n.sent, req)
}

type fakePublisher struct {
	events []string
}

func (p *fakePublisher) Publish(ctx context.Context, eventType string, payload any) error {
	p.events = append(p.events, eventType)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(id, passengerID string) *domain.WaitlistEntry {
	return &domain.WaitlistEntry{
		WaitlistID:  id,
		PassengerID: passengerID,
		CheckInID:   "ci_" + passengerID,
		FlightID:    "FL123",
		SeatID:      "12A",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestEngine_PromotesTopCandidate(t *testing.T) {
	store := &fakeClaimStore{entries: []*domain.WaitlistEntry{entry("wl_1", "p1")}}
	checkin := &fakeCheckin{}
	notify := &fakeNotifier{}
	bus := &fakePublisher{}

	e := NewEngine(store, checkin, notify, bus, discardLogger(), time.Second)
	e.ProcessSeatAvailable(context.Background(), "12A", "FL123")

	if len(checkin.calls) != 1 || checkin.calls[0] != "p1" {
		t.Fatalf("expected one check-in call for p1, got %v", checkin.calls)
	}
	if len(bus.events) != 1 || bus.events[0] != eventbus.WaitlistCheckinCompleted {
		t.Fatalf("expected checkin.completed event, got %v", bus.events)
	}
	if len(notify.sent) != 1 || notify.sent[0].PassengerID != "p1" {
		t.Fatalf("expected notification for p1, got %v", notify.sent)
	}
}

func TestEngine_FailedCandidateIsSkippedForGood(t *testing.T) {
	store := &fakeClaimStore{entries: []*domain.WaitlistEntry{
		entry("wl_1", "p1"),
		entry("wl_2", "p2"),
		entry("wl_3", "p3"),
	}}
	checkin := &fakeCheckin{failFor: map[string]bool{"p1": true, "p2": true}}
	notify := &fakeNotifier{}
	bus := &fakePublisher{}

	e := NewEngine(store, checkin, notify, bus, discardLogger(), time.Second)
	e.ProcessSeatAvailable(context.Background(), "12A", "FL123")

	// p1 and p2 fail and are claimed off the list; p3 wins the seat.
	if want := []string{"p1", "p2", "p3"}; len(checkin.calls) != 3 ||
		checkin.calls[0] != want[0] || checkin.calls[1] != want[1] || checkin.calls[2] != want[2] {
		t.Fatalf("expected calls %v, got %v", want, checkin.calls)
	}
	if len(notify.sent) != 1 || notify.sent[0].PassengerID != "p3" {
		t.Fatalf("expected single notification for p3, got %v", notify.sent)
	}
	if len(store.entries) != 0 {
		t.Fatalf("expected all entries claimed, %d left", len(store.entries))
	}
}

func TestEngine_NoWaitersIsNoOp(t *testing.T) {
	store := &fakeClaimStore{}
	checkin := &fakeCheckin{}
	notify := &fakeNotifier{}
	bus := &fakePublisher{}

	e := NewEngine(store, checkin, notify, bus, discardLogger(), time.Second)
	e.ProcessSeatAvailable(context.Background(), "12A", "FL123")

	if len(checkin.calls) != 0 {
		t.Fatalf("expected no check-in calls, got %v", checkin.calls)
	}
	if len(bus.events) != 0 || len(notify.sent) != 0 {
		t.Fatalf("expected no side effects, got events=%v sent=%v", bus.events, notify.sent)
	}
	if store.claims != 1 {
		t.Fatalf("expected a single claim attempt, got %d", store.claims)
	}
}

func TestEngine_HandleSeatAvailable_IgnoresIncompletePayload(t *testing.T) {
	store := &fakeClaimStore{entries: []*domain.WaitlistEntry{entry("wl_1", "p1")}}
	checkin := &fakeCheckin{}
	notify := &fakeNotifier{}
	bus := &fakePublisher{}

	e := NewEngine(store, checkin, notify, bus, discardLogger(), time.Second)

	payload, _ := json.Marshal(eventbus.SeatEvent{SeatID: "12A"})
	err := e.handleSeatAvailable(context.Background(), eventbus.Envelope{
		Type:    eventbus.SeatReleased,
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.claims != 0 {
		t.Fatalf("expected no claim for payload without flight_id, got %d", store.claims)
	}
}
