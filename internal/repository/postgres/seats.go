package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avdeenko/skyhold/internal/domain"
	"github.com/avdeenko/skyhold/internal/repository"
)

type SeatRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SeatRepo) With(db DB) *SeatRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SeatRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// HoldSeat transitions a seat from AVAILABLE to HELD in a single conditional
// update. The WHERE clause carries the state check, so the read-modify-write
// is race-free under the surrounding serializable transaction.
//
// Returns:
//   - error: repository.ErrSeatUnavailable if the seat is not AVAILABLE
//     (or does not exist).
func (r *SeatRepo) HoldSeat(
	ctx context.Context,
	flightID, seatID, passengerID string,
	expiresAt time.Time,
) error {
	const op = "postgres.SeatRepo.HoldSeat"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seats
        	SET state = 'HELD', held_by = $3, hold_expires_at = $4, updated_at = now()
      	 WHERE flight_id = $1
        	AND seat_id = $2
        	AND state = 'AVAILABLE'`,
		flightID, seatID, passengerID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrSeatUnavailable)
	}

	return nil
}

// FindAlternatives returns up to limit AVAILABLE seats of the given category
// within ±2 rows of row, ordered by row ascending. Used to build the
// suggestion list inside a failed hold's transaction.
func (r *SeatRepo) FindAlternatives(
	ctx context.Context,
	flightID string,
	category domain.SeatCategory,
	row int,
	limit int,
) ([]string, error) {
	const op = "postgres.SeatRepo.FindAlternatives"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT seat_id
       	 FROM seats
      	 WHERE flight_id = $1
        	AND state = 'AVAILABLE'
        	AND category = $2
        	AND row_number BETWEEN $3 AND $4
      	 ORDER BY row_number, column_letter
      	 LIMIT $5`,
		flightID, category, row-2, row+2, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// GetSeat retrieves a single seat row.
//
// Returns:
//   - *domain.Seat: the seat when found.
//   - error: repository.ErrNotFound if the seat does not exist.
func (r *SeatRepo) GetSeat(ctx context.Context, flightID, seatID string) (*domain.Seat, error) {
	const op = "postgres.SeatRepo.GetSeat"

	db := r.handle()

	var s domain.Seat
	err := db.QueryRow(ctx,
		`SELECT seat_id, flight_id, row_number, column_letter, category, state,
             held_by, hold_expires_at, confirmed_by, price_cents, created_at, updated_at
       	 FROM seats
      	 WHERE flight_id = $1 AND seat_id = $2`,
		flightID, seatID,
	).Scan(
		&s.SeatID,
		&s.FlightID,
		&s.Row,
		&s.Column,
		&s.Category,
		&s.State,
		&s.HeldBy,
		&s.HoldExpiresAt,
		&s.ConfirmedBy,
		&s.PriceCents,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &s, nil
}

// ReleaseSeat reverts a HELD or CONFIRMED seat to AVAILABLE, clearing the
// holder, expiry and confirmer.
//
// Returns:
//   - error: repository.ErrNotFound if the seat is not HELD or CONFIRMED.
func (r *SeatRepo) ReleaseSeat(ctx context.Context, seatID, flightID string) error {
	const op = "postgres.SeatRepo.ReleaseSeat"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seats
        	SET state = 'AVAILABLE', held_by = NULL, hold_expires_at = NULL,
            	confirmed_by = NULL, updated_at = now()
      	 WHERE flight_id = $1
        	AND seat_id = $2
        	AND state IN ('HELD', 'CONFIRMED')`,
		flightID, seatID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// ConfirmSeat transitions HELD(by passengerID) to CONFIRMED. The caller is
// expected to have read the seat inside the same transaction to produce a
// precise failure reason; a zero row count here after a passing read means a
// concurrent mutation slipped in between.
//
// Returns:
//   - int64: number of rows updated (0 or 1).
func (r *SeatRepo) ConfirmSeat(
	ctx context.Context,
	flightID, seatID, passengerID string,
) (int64, error) {
	const op = "postgres.SeatRepo.ConfirmSeat"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seats
        	SET state = 'CONFIRMED', confirmed_by = $3, held_by = NULL,
            	hold_expires_at = NULL, updated_at = now()
      	 WHERE flight_id = $1
        	AND seat_id = $2
        	AND state = 'HELD'
        	AND held_by = $3`,
		flightID, seatID, passengerID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

// ExpireDue reverts every HELD seat whose expiry is at or before now back to
// AVAILABLE and reports the reclaimed holds. The update re-checks
// state = 'HELD' at write time, so a seat confirmed between scan and write is
// silently excluded.
func (r *SeatRepo) ExpireDue(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	const op = "postgres.SeatRepo.ExpireDue"

	db := r.handle()

	rows, err := db.Query(ctx,
		`WITH due AS (
        	SELECT flight_id, seat_id, held_by
          	FROM seats
         	WHERE state = 'HELD' AND hold_expires_at <= $1
         	FOR UPDATE
     	 )
     	 UPDATE seats s
        	SET state = 'AVAILABLE', held_by = NULL, hold_expires_at = NULL, updated_at = now()
       	 FROM due
      	 WHERE s.flight_id = due.flight_id
        	AND s.seat_id = due.seat_id
        	AND s.state = 'HELD'
      	 RETURNING s.seat_id, s.flight_id, due.held_by`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.ExpiredHold
	for rows.Next() {
		var e domain.ExpiredHold
		var holder *string
		if err := rows.Scan(&e.SeatID, &e.FlightID, &holder); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		if holder != nil {
			e.PreviousHolder = *holder
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListFlightSeats lists every seat of a flight ordered by row and column.
//
// Returns:
//   - []domain.Seat: the flight's seats; empty when the flight is unknown.
func (r *SeatRepo) ListFlightSeats(ctx context.Context, flightID string) ([]domain.Seat, error) {
	const op = "postgres.SeatRepo.ListFlightSeats"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT seat_id, flight_id, row_number, column_letter, category, state,
             held_by, hold_expires_at, confirmed_by, price_cents, created_at, updated_at
       	 FROM seats
      	 WHERE flight_id = $1
      	 ORDER BY row_number, column_letter`,
		flightID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(
			&s.SeatID,
			&s.FlightID,
			&s.Row,
			&s.Column,
			&s.Category,
			&s.State,
			&s.HeldBy,
			&s.HoldExpiresAt,
			&s.ConfirmedBy,
			&s.PriceCents,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
