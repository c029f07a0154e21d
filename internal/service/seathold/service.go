package seathold

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
	redisrepo "github.com/avdeenko/skyhold/internal/repository/redis"
	"github.com/avdeenko/skyhold/internal/uow"
)

const maxSuggestions = 3

// seatStore is the slice of the seat repository the service drives; tx is nil
// for reads outside a transaction.
type seatStore interface {
	HoldSeat(ctx context.Context, flightID, seatID, passengerID string, expiresAt time.Time) error
	FindAlternatives(ctx context.Context, flightID string, category domain.SeatCategory, row, limit int) ([]string, error)
	GetSeat(ctx context.Context, flightID, seatID string) (*domain.Seat, error)
	ReleaseSeat(ctx context.Context, seatID, flightID string) error
	ConfirmSeat(ctx context.Context, flightID, seatID, passengerID string) (int64, error)
	ExpireDue(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error)
	ListFlightSeats(ctx context.Context, flightID string) ([]domain.Seat, error)
}

type publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type rateLimiter interface {
	Allow(ctx context.Context, suffix string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type txRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type Config struct {
	DefaultHoldTTL time.Duration
	MinHoldTTL     time.Duration
	MaxHoldTTL     time.Duration
	SeatMapTTL     time.Duration
}

type Service struct {
	seats   func(tx postgresrepo.DB) seatStore
	cache   *redisrepo.Cache
	bus     publisher
	limiter rateLimiter
	uow     txRunner
	logger  *slog.Logger
	cfg     Config
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	bus *eventbus.Bus,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.DefaultHoldTTL <= 0 {
		cfg.DefaultHoldTTL = 120 * time.Second
	}

	if cfg.MinHoldTTL <= 0 {
		cfg.MinHoldTTL = 30 * time.Second
	}

	if cfg.MaxHoldTTL <= 0 || cfg.MaxHoldTTL < cfg.MinHoldTTL {
		cfg.MaxHoldTTL = 15 * time.Minute
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 5 * time.Second
	}

	s := &Service{
		seats:  func(tx postgresrepo.DB) seatStore { return store.Seats().With(tx) },
		cache:  cache,
		bus:    bus,
		uow:    uow.NewUoW(store),
		logger: logger,
		cfg:    cfg,
	}
	if limiter != nil {
		s.limiter = limiter
	}

	return s
}

// Hold places a time-bounded exclusive claim on a seat.
//
// The AVAILABLE→HELD transition is one conditional update inside a
// serializable transaction; concurrent holders lose on the state check, not
// on ordering. When the seat is taken, up to three same-category seats
// within two rows are searched inside the same transaction and returned in a
// *SeatUnavailableError.
//
// A HELD seat whose expiry has already passed still rejects here: expiry is
// advisory to the sweeper, which is the sole reclaimer.
//
// Returns:
//   - *domain.Hold: hold id and expiry when successful.
//   - error: *SeatUnavailableError if the seat is not AVAILABLE.
func (s *Service) Hold(
	ctx context.Context,
	flightID, seatID, passengerID string,
	ttl time.Duration,
	rlKey string,
) (*domain.Hold, error) {
	const op = "service.seathold.Hold"

	ttl = s.clampTTL(ttl)
	expiresAt := time.Now().Add(ttl).UTC()

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: rate limited, retry in %s", op, retry)
		}
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		err := s.seats(tx).HoldSeat(ctx, flightID, seatID, passengerID, expiresAt)
		if err == nil {
			after(func(ctx context.Context) {
				s.invalidate(ctx, flightID)
				_ = s.bus.Publish(ctx, eventbus.SeatHeld, eventbus.SeatEvent{
					SeatID:      seatID,
					FlightID:    flightID,
					PassengerID: passengerID,
					ExpiresAt:   &expiresAt,
				})
			})
			return nil
		}

		if !errors.Is(err, repository.ErrSeatUnavailable) {
			return fmt.Errorf("%s:%w", op, err)
		}

		return fmt.Errorf("%s:%w", op, &SeatUnavailableError{
			SeatID:      seatID,
			Suggestions: s.suggestions(ctx, tx, flightID, seatID),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("seat held",
		"flight_id", flightID, "seat_id", seatID, "passenger_id", passengerID,
		"expires_at", expiresAt)

	return &domain.Hold{
		HoldID:    uuid.New().String(),
		SeatID:    seatID,
		ExpiresAt: expiresAt,
	}, nil
}

// Release reverts a HELD or CONFIRMED seat to AVAILABLE. Releasing a
// CONFIRMED seat is the cancellation path.
//
// Returns:
//   - error: ErrSeatNotFound if the seat is unknown or already AVAILABLE.
func (s *Service) Release(ctx context.Context, seatID, flightID string) error {
	const op = "service.seathold.Release"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.seats(tx).ReleaseSeat(ctx, seatID, flightID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrSeatNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.invalidate(ctx, flightID)
			_ = s.bus.Publish(ctx, eventbus.SeatReleased, eventbus.SeatEvent{
				SeatID:   seatID,
				FlightID: flightID,
			})
		})

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("seat released", "flight_id", flightID, "seat_id", seatID)

	return nil
}

// Confirm finalizes a hold into a booked seat.
//
// The current row is read first, inside the same transaction as the write,
// to produce a precise failure reason. A zero-row conditional update after a
// passing read means another transaction changed the seat in between and is
// reported as ErrConcurrentConflict rather than disguised as ErrNotHeld.
//
// Returns:
//   - error: ErrSeatNotFound | ErrNotHeld | ErrHeldByOther |
//     ErrConcurrentConflict.
func (s *Service) Confirm(ctx context.Context, seatID, flightID, passengerID string) error {
	const op = "service.seathold.Confirm"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		seat, err := s.seats(tx).GetSeat(ctx, flightID, seatID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrSeatNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if seat.State != domain.SeatHeld {
			return fmt.Errorf("%s:%w", op, ErrNotHeld)
		}

		if seat.HeldBy == nil || *seat.HeldBy != passengerID {
			return fmt.Errorf("%s:%w", op, ErrHeldByOther)
		}

		rows, err := s.seats(tx).ConfirmSeat(ctx, flightID, seatID, passengerID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if rows == 0 {
			return fmt.Errorf("%s:%w", op, ErrConcurrentConflict)
		}

		after(func(ctx context.Context) {
			s.invalidate(ctx, flightID)
			_ = s.bus.Publish(ctx, eventbus.SeatConfirmed, eventbus.SeatEvent{
				SeatID:      seatID,
				FlightID:    flightID,
				PassengerID: passengerID,
			})
		})

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("seat confirmed",
		"flight_id", flightID, "seat_id", seatID, "passenger_id", passengerID)

	return nil
}

// Expire reclaims every hold whose expiry has passed, in one transaction.
// Per reclaimed seat, cache invalidation and a seat.hold.expired event run
// after commit. The sweeper calls this on every tick.
func (s *Service) Expire(ctx context.Context) (int, error) {
	const op = "service.seathold.Expire"

	var reclaimed int

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		expired, err := s.seats(tx).ExpireDue(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		reclaimed = len(expired)

		for _, e := range expired {
			e := e
			after(func(ctx context.Context) {
				s.invalidate(ctx, e.FlightID)
				_ = s.bus.Publish(ctx, eventbus.SeatHoldExpired, eventbus.SeatEvent{
					SeatID:         e.SeatID,
					FlightID:       e.FlightID,
					PreviousHolder: e.PreviousHolder,
				})
			})
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if reclaimed > 0 {
		s.logger.Info("expired holds reclaimed", "count", reclaimed)
	}

	return reclaimed, nil
}

// SeatMap returns the public projection of a flight's seats through the
// read-through cache. Holder identity is hidden; every non-AVAILABLE state
// collapses to UNAVAILABLE.
//
// Returns:
//   - error: ErrFlightNotFound when the flight has no seats.
func (s *Service) SeatMap(ctx context.Context, flightID string) (*domain.SeatMap, error) {
	const op = "service.seathold.SeatMap"

	key := redisrepo.KeySeatMap(flightID)

	sm, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.SeatMapTTL,
		func(ctx context.Context) (domain.SeatMap, error) {
			seats, err := s.seats(nil).ListFlightSeats(ctx, flightID)
			if err != nil {
				return domain.SeatMap{}, err
			}

			if len(seats) == 0 {
				return domain.SeatMap{}, ErrFlightNotFound
			}

			return project(flightID, seats), nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrFlightNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrFlightNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &sm, nil
}

func project(flightID string, seats []domain.Seat) domain.SeatMap {
	sm := domain.SeatMap{
		FlightID:   flightID,
		TotalSeats: len(seats),
		Seats:      make([]domain.SeatMapSeat, 0, len(seats)),
	}

	for _, seat := range seats {
		state := "UNAVAILABLE"
		if seat.State == domain.SeatAvailable {
			state = "AVAILABLE"
			sm.AvailableSeats++
		}

		sm.Seats = append(sm.Seats, domain.SeatMapSeat{
			SeatID:     seat.SeatID,
			Row:        seat.Row,
			Column:     seat.Column,
			State:      state,
			Category:   seat.Category,
			PriceCents: seat.PriceCents,
		})
	}

	return sm
}

// suggestions runs the alternative-seat search on the failed hold's
// transaction. A malformed seat id just yields no suggestions.
func (s *Service) suggestions(
	ctx context.Context,
	tx postgresrepo.DB,
	flightID, seatID string,
) []string {
	row, column, err := domain.ParseSeatID(seatID)
	if err != nil {
		return nil
	}

	alts, err := s.seats(tx).FindAlternatives(
		ctx, flightID, domain.CategoryForColumn(column), row, maxSuggestions,
	)
	if err != nil {
		s.logger.Warn("alternative seat search failed",
			"flight_id", flightID, "seat_id", seatID, "error", err)
		return nil
	}

	return alts
}

func (s *Service) invalidate(ctx context.Context, flightID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateFlight(ctx, flightID)
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.DefaultHoldTTL
	}

	if ttl < s.cfg.MinHoldTTL {
		return s.cfg.MinHoldTTL
	}

	if ttl > s.cfg.MaxHoldTTL {
		return s.cfg.MaxHoldTTL
	}

	return ttl
}
