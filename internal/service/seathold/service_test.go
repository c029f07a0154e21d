package seathold

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/avdeenko/skyhold/internal/domain"
	"github.com/avdeenko/skyhold/internal/eventbus"
	"github.com/avdeenko/skyhold/internal/repository"
	postgresrepo "github.com/avdeenko/skyhold/internal/repository/postgres"
	"github.com/avdeenko/skyhold/internal/uow"
)

type fakeSeatStore struct {
	seat         *domain.Seat
	getErr       error
	holdErr      error
	releaseErr   error
	confirmRows  int64
	confirmErr   error
	alternatives []string
}

func (f *fakeSeatStore) HoldSeat(ctx context.Context, flightID, seatID, passengerID string, expiresAt time.Time) error {
	return f.holdErr
}

func (f *fakeSeatStore) FindAlternatives(ctx context.Context, flightID string, category domain.SeatCategory, row, limit int) ([]string, error) {
	return f.alternatives, nil
}

func (f *fakeSeatStore) GetSeat(ctx context.Context, flightID, seatID string) (*domain.Seat, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.seat, nil
}

func (f *fakeSeatStore) ReleaseSeat(ctx context.Context, seatID, flightID string) error {
	return f.releaseErr
}

func (f *fakeSeatStore) ConfirmSeat(ctx context.Context, flightID, seatID, passengerID string) (int64, error) {
	return f.confirmRows, f.confirmErr
}

func (f *fakeSeatStore) ExpireDue(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	return nil, nil
}

func (f *fakeSeatStore) ListFlightSeats(ctx context.Context, flightID string) ([]domain.Seat, error) {
	return nil, nil
}

// passthroughRunner mimics a committed transaction: fn runs with a nil tx and
// the after-commit hooks fire on success.
type passthroughRunner struct{}

func (passthroughRunner) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error,
) error {
	var hooks []uow.AfterCommit
	if err := fn(ctx, nil, func(h uow.AfterCommit) { hooks = append(hooks, h) }); err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

type fakePublisher struct {
	events []string
}

func (p *fakePublisher) Publish(ctx context.Context, eventType string, payload any) error {
	p.events = append(p.events, eventType)
	return nil
}

func newTestService(store seatStore, bus publisher) *Service {
	return &Service{
		seats:  func(postgresrepo.DB) seatStore { return store },
		bus:    bus,
		uow:    passthroughRunner{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg: Config{
			DefaultHoldTTL: 120 * time.Second,
			MinHoldTTL:     30 * time.Second,
			MaxHoldTTL:     15 * time.Minute,
			SeatMapTTL:     5 * time.Second,
		},
	}
}

func TestConfirm_ErrorKinds(t *testing.T) {
	me := "p1"
	other := "p2"

	tests := []struct {
		name    string
		store   *fakeSeatStore
		wantErr error
	}{
		{
			name:    "unknown seat",
			store:   &fakeSeatStore{getErr: repository.ErrNotFound},
			wantErr: ErrSeatNotFound,
		},
		{
			name: "seat not held",
			store: &fakeSeatStore{
				seat: &domain.Seat{SeatID: "12A", State: domain.SeatAvailable},
			},
			wantErr: ErrNotHeld,
		},
		{
			name: "confirmed seat is not held either",
			store: &fakeSeatStore{
				seat: &domain.Seat{SeatID: "12A", State: domain.SeatConfirmed, ConfirmedBy: &other},
			},
			wantErr: ErrNotHeld,
		},
		{
			name: "held by another passenger",
			store: &fakeSeatStore{
				seat: &domain.Seat{SeatID: "12A", State: domain.SeatHeld, HeldBy: &other},
			},
			wantErr: ErrHeldByOther,
		},
		{
			name: "zero rows after passing read",
			store: &fakeSeatStore{
				seat:        &domain.Seat{SeatID: "12A", State: domain.SeatHeld, HeldBy: &me},
				confirmRows: 0,
			},
			wantErr: ErrConcurrentConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &fakePublisher{}
			s := newTestService(tt.store, bus)

			err := s.Confirm(context.Background(), "12A", "FL123", me)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Confirm() error = %v, want %v", err, tt.wantErr)
			}
			if len(bus.events) != 0 {
				t.Fatalf("no event expected on failure, got %v", bus.events)
			}
		})
	}
}

func TestConfirm_Success(t *testing.T) {
	me := "p1"
	bus := &fakePublisher{}
	s := newTestService(&fakeSeatStore{
		seat:        &domain.Seat{SeatID: "12A", State: domain.SeatHeld, HeldBy: &me},
		confirmRows: 1,
	}, bus)

	if err := s.Confirm(context.Background(), "12A", "FL123", me); err != nil {
		t.Fatalf("Confirm() = %v", err)
	}
	if len(bus.events) != 1 || bus.events[0] != eventbus.SeatConfirmed {
		t.Fatalf("expected seat.confirmed event, got %v", bus.events)
	}
}

func TestHold_UnavailableCarriesSuggestions(t *testing.T) {
	bus := &fakePublisher{}
	s := newTestService(&fakeSeatStore{
		holdErr:      repository.ErrSeatUnavailable,
		alternatives: []string{"11A", "13A", "14F"},
	}, bus)

	_, err := s.Hold(context.Background(), "FL123", "12A", "p1", 0, "")

	var unavailable *SeatUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *SeatUnavailableError, got %v", err)
	}
	if unavailable.SeatID != "12A" {
		t.Fatalf("error seat id = %q, want 12A", unavailable.SeatID)
	}
	if len(unavailable.Suggestions) != 3 || unavailable.Suggestions[0] != "11A" {
		t.Fatalf("suggestions = %v", unavailable.Suggestions)
	}
	if len(bus.events) != 0 {
		t.Fatalf("no event expected on failed hold, got %v", bus.events)
	}
}

func TestRelease_NotFound(t *testing.T) {
	bus := &fakePublisher{}
	s := newTestService(&fakeSeatStore{releaseErr: repository.ErrNotFound}, bus)

	err := s.Release(context.Background(), "12A", "FL123")
	if !errors.Is(err, ErrSeatNotFound) {
		t.Fatalf("Release() error = %v, want %v", err, ErrSeatNotFound)
	}
}

func TestClampTTL(t *testing.T) {
	s := &Service{cfg: Config{
		DefaultHoldTTL: 120 * time.Second,
		MinHoldTTL:     30 * time.Second,
		MaxHoldTTL:     15 * time.Minute,
	}}

	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero falls back to default", 0, 120 * time.Second},
		{"negative falls back to default", -time.Second, 120 * time.Second},
		{"below minimum is raised", 5 * time.Second, 30 * time.Second},
		{"above maximum is capped", time.Hour, 15 * time.Minute},
		{"in range passes through", 90 * time.Second, 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.clampTTL(tt.in); got != tt.want {
				t.Fatalf("clampTTL(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestProject_HidesHolderAndCollapsesStates(t *testing.T) {
	holder := "p1"
	confirmer := "p2"
	expiry := time.Now().Add(time.Minute)

	seats := []domain.Seat{
		{SeatID: "1A", Row: 1, Column: "A", Category: domain.SeatWindow, State: domain.SeatAvailable, PriceCents: 5000},
		{SeatID: "1B", Row: 1, Column: "B", Category: domain.SeatMiddle, State: domain.SeatHeld, HeldBy: &holder, HoldExpiresAt: &expiry},
		{SeatID: "1C", Row: 1, Column: "C", Category: domain.SeatAisle, State: domain.SeatConfirmed, ConfirmedBy: &confirmer},
		{SeatID: "1D", Row: 1, Column: "D", Category: domain.SeatAisle, State: domain.SeatCancelled},
	}

	sm := project("FL123", seats)

	if sm.FlightID != "FL123" {
		t.Fatalf("flight id = %q", sm.FlightID)
	}
	if sm.TotalSeats != 4 {
		t.Fatalf("total seats = %d, want 4", sm.TotalSeats)
	}
	if sm.AvailableSeats != 1 {
		t.Fatalf("available seats = %d, want 1", sm.AvailableSeats)
	}

	wantStates := map[string]string{
		"1A": "AVAILABLE",
		"1B": "UNAVAILABLE",
		"1C": "UNAVAILABLE",
		"1D": "UNAVAILABLE",
	}
	for _, seat := range sm.Seats {
		if seat.State != wantStates[seat.SeatID] {
			t.Fatalf("seat %s state = %q, want %q", seat.SeatID, seat.State, wantStates[seat.SeatID])
		}
	}
}
