package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avdeenko/skyhold/internal/domain"
	"github.com/avdeenko/skyhold/internal/eventbus"
	"github.com/avdeenko/skyhold/internal/repository"
	postgresrepo "github.com/avdeenko/skyhold/internal/repository/postgres"
)

type Config struct {
	// EntryTTL is the absolute lifetime of a waitlist entry; the cleanup
	// job removes entries past it.
	EntryTTL time.Duration
}

type Service struct {
	store  *postgresrepo.Store
	bus    *eventbus.Bus
	logger *slog.Logger
	cfg    Config
}

func New(store *postgresrepo.Store, bus *eventbus.Bus, logger *slog.Logger, cfg Config) *Service {
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 3 * time.Hour
	}

	return &Service{
		store:  store,
		bus:    bus,
		logger: logger,
		cfg:    cfg,
	}
}

type JoinRequest struct {
	PassengerID      string
	CheckInID        string
	FlightID         string
	SeatID           string
	LoyaltyTier      domain.LoyaltyTier
	BookingTimestamp time.Time
	SpecialNeeds     bool
	Baggage          domain.Baggage
}

// Join puts a passenger on the waitlist for an unavailable seat.
//
// Returns:
//   - *domain.WaitlistTicket: id, queue position and display wait estimate.
//   - error: ErrAlreadyOnWaitlist when the passenger already has an active
//     entry for this (flight, seat).
func (s *Service) Join(ctx context.Context, req JoinRequest) (*domain.WaitlistTicket, error) {
	const op = "service.waitlist.Join"

	now := time.Now().UTC()

	entry := domain.WaitlistEntry{
		WaitlistID:    "wl_" + uuid.New().String(),
		PassengerID:   req.PassengerID,
		CheckInID:     req.CheckInID,
		FlightID:      req.FlightID,
		SeatID:        req.SeatID,
		PriorityScore: Score(req.LoyaltyTier, req.BookingTimestamp, req.SpecialNeeds, now),
		LoyaltyTier:   req.LoyaltyTier,
		SpecialNeeds:  req.SpecialNeeds,
		Baggage:       req.Baggage,
		ExpiresAt:     now.Add(s.cfg.EntryTTL),
		CreatedAt:     now,
	}

	if err := s.store.Waitlist().Insert(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrAlreadyOnWaitlist)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	position, err := s.store.Waitlist().Position(ctx, &entry)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("passenger joined waitlist",
		"waitlist_id", entry.WaitlistID, "passenger_id", req.PassengerID,
		"seat_id", req.SeatID, "position", position, "score", entry.PriorityScore)

	_ = s.bus.Publish(ctx, eventbus.WaitlistJoined, eventbus.WaitlistEvent{
		WaitlistID:  entry.WaitlistID,
		PassengerID: req.PassengerID,
		FlightID:    req.FlightID,
		SeatID:      req.SeatID,
		Position:    position,
	})

	return &domain.WaitlistTicket{
		WaitlistID:        entry.WaitlistID,
		Position:          position,
		EstimatedWaitTime: EstimateWaitTime(position),
	}, nil
}

// Leave withdraws a passenger's own entry.
//
// Returns:
//   - error: ErrEntryNotFound | ErrForbidden.
func (s *Service) Leave(ctx context.Context, waitlistID, passengerID string) error {
	const op = "service.waitlist.Leave"

	entry, err := s.store.Waitlist().Get(ctx, waitlistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrEntryNotFound)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	if entry.PassengerID != passengerID {
		return fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	if err := s.store.Waitlist().Delete(ctx, waitlistID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrEntryNotFound)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("passenger left waitlist",
		"waitlist_id", waitlistID, "passenger_id", passengerID)

	_ = s.bus.Publish(ctx, eventbus.WaitlistLeft, eventbus.WaitlistEvent{
		WaitlistID:  waitlistID,
		PassengerID: passengerID,
	})

	return nil
}

// CleanupExpired removes entries past their absolute expiry. The cleanup
// worker calls this periodically.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "service.waitlist.CleanupExpired"

	n, err := s.store.Waitlist().DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return n, nil
}
