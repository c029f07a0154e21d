package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avdeenko/skyhold/internal/domain"
)

type FleetRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *FleetRepo) With(db DB) *FleetRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *FleetRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CreateFlight inserts the flight record.
//
// Returns:
//   - error: repository.ErrConflict if the flight already exists.
func (r *FleetRepo) CreateFlight(ctx context.Context, flightID, aircraft string) error {
	const op = "postgres.FleetRepo.CreateFlight"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO flights (flight_id, aircraft) VALUES ($1, $2)`,
		flightID, aircraft,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// BatchInsertSeats seeds a flight's cabin in one batch, all AVAILABLE.
func (r *FleetRepo) BatchInsertSeats(ctx context.Context, seats []domain.Seat) error {
	const op = "postgres.FleetRepo.BatchInsertSeats"

	db := r.handle()

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(
			`INSERT INTO seats
                (seat_id, flight_id, row_number, column_letter, category, state, price_cents)
         	 VALUES ($1, $2, $3, $4, $5, 'AVAILABLE', $6)`,
			s.SeatID, s.FlightID, s.Row, s.Column, s.Category, s.PriceCents,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
