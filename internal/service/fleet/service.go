// Package fleet seeds flight inventory. Seats are created here once and
// afterwards mutated only through the seat hold manager's guarded
// transitions.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avdeenko/skyhold/internal/domain"
	"github.com/avdeenko/skyhold/internal/repository"
	postgresrepo "github.com/avdeenko/skyhold/internal/repository/postgres"
	"github.com/avdeenko/skyhold/internal/uow"
)

const (
	premiumRows       = 5
	premiumPriceCents = 5000
	defaultPriceCents = 2500
)

var defaultColumns = []string{"A", "B", "C", "D", "E", "F"}

type Service struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	logger *slog.Logger
}

func New(store *postgresrepo.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		logger: logger,
	}
}

// CreateFlight creates a flight and seeds its cabin grid: the given number
// of rows over columns A-F (window A/F, aisle C/D, middle B/E), premium
// pricing on the first five rows, everything AVAILABLE.
//
// Returns:
//   - int: number of seats created.
//   - error: ErrFlightConflict when the flight already exists.
func (s *Service) CreateFlight(
	ctx context.Context,
	flightID, aircraft string,
	rows int,
) (int, error) {
	const op = "service.fleet.CreateFlight"

	if rows <= 0 {
		rows = 30
	}

	seats := make([]domain.Seat, 0, rows*len(defaultColumns))
	for row := 1; row <= rows; row++ {
		for _, col := range defaultColumns {
			price := defaultPriceCents
			if row <= premiumRows {
				price = premiumPriceCents
			}

			seats = append(seats, domain.Seat{
				SeatID:     fmt.Sprintf("%d%s", row, col),
				FlightID:   flightID,
				Row:        row,
				Column:     col,
				Category:   domain.CategoryForColumn(col),
				PriceCents: price,
			})
		}
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.store.Fleet().With(tx).CreateFlight(ctx, flightID, aircraft); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrFlightConflict)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if err := s.store.Fleet().With(tx).BatchInsertSeats(ctx, seats); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("flight seeded",
		"flight_id", flightID, "aircraft", aircraft, "seats", len(seats))

	return len(seats), nil
}
