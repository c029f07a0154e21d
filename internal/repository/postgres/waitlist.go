package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avdeenko/skyhold/internal/domain"
	"github.com/avdeenko/skyhold/internal/repository"
)

type WaitlistRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *WaitlistRepo) With(db DB) *WaitlistRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *WaitlistRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert creates a waitlist entry.
//
// Returns:
//   - error: repository.ErrConflict when the passenger already has an active
//     entry for this (flight, seat) — enforced by a unique constraint.
func (r *WaitlistRepo) Insert(ctx context.Context, e domain.WaitlistEntry) error {
	const op = "postgres.WaitlistRepo.Insert"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO waitlist_entries
            (waitlist_id, passenger_id, checkin_id, flight_id, seat_id,
             priority_score, loyalty_tier, special_needs, baggage_count,
             baggage_weights, expires_at, created_at)
     	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.WaitlistID, e.PassengerID, e.CheckInID, e.FlightID, e.SeatID,
		e.PriorityScore, e.LoyaltyTier, e.SpecialNeeds, e.Baggage.Count,
		e.Baggage.Weights, e.ExpiresAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves an entry by waitlist ID.
//
// Returns:
//   - error: repository.ErrNotFound if no entry exists.
func (r *WaitlistRepo) Get(ctx context.Context, waitlistID string) (*domain.WaitlistEntry, error) {
	const op = "postgres.WaitlistRepo.Get"

	db := r.handle()

	var e domain.WaitlistEntry
	err := db.QueryRow(ctx,
		`SELECT waitlist_id, passenger_id, checkin_id, flight_id, seat_id,
             priority_score, loyalty_tier, special_needs, baggage_count,
             baggage_weights, expires_at, created_at
       	 FROM waitlist_entries
      	 WHERE waitlist_id = $1`,
		waitlistID,
	).Scan(
		&e.WaitlistID,
		&e.PassengerID,
		&e.CheckInID,
		&e.FlightID,
		&e.SeatID,
		&e.PriorityScore,
		&e.LoyaltyTier,
		&e.SpecialNeeds,
		&e.Baggage.Count,
		&e.Baggage.Weights,
		&e.ExpiresAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &e, nil
}

// Delete removes an entry by waitlist ID.
//
// Returns:
//   - error: repository.ErrNotFound if no entry was deleted.
func (r *WaitlistRepo) Delete(ctx context.Context, waitlistID string) error {
	const op = "postgres.WaitlistRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM waitlist_entries WHERE waitlist_id = $1`,
		waitlistID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Position reports the 1-based queue position of an entry among the waiters
// for the same seat. Higher score ranks first; equal scores rank by earlier
// join time.
func (r *WaitlistRepo) Position(ctx context.Context, e *domain.WaitlistEntry) (int, error) {
	const op = "postgres.WaitlistRepo.Position"

	db := r.handle()

	var ahead int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*)
       	 FROM waitlist_entries
      	 WHERE flight_id = $1
        	AND seat_id = $2
        	AND (priority_score > $3
             OR (priority_score = $3 AND created_at < $4))`,
		e.FlightID, e.SeatID, e.PriorityScore, e.CreatedAt,
	).Scan(&ahead)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return ahead + 1, nil
}

// ClaimTop atomically removes and returns the highest-priority entry for a
// seat. Claiming is a delete: a candidate handed to the caller is already
// off the list, so a failed promotion is never retried and never blocks the
// waiters behind it. SKIP LOCKED keeps concurrent claimers from fighting
// over the same row.
//
// Returns:
//   - error: repository.ErrNotFound when the waitlist for the seat is empty.
func (r *WaitlistRepo) ClaimTop(
	ctx context.Context,
	flightID, seatID string,
) (*domain.WaitlistEntry, error) {
	const op = "postgres.WaitlistRepo.ClaimTop"

	db := r.handle()

	var e domain.WaitlistEntry
	err := db.QueryRow(ctx,
		`DELETE FROM waitlist_entries
      	 WHERE waitlist_id = (
            SELECT waitlist_id
              FROM waitlist_entries
             WHERE flight_id = $1 AND seat_id = $2
             ORDER BY priority_score DESC, created_at ASC
             LIMIT 1
               FOR UPDATE SKIP LOCKED
     	 )
     	 RETURNING waitlist_id, passenger_id, checkin_id, flight_id, seat_id,
               priority_score, loyalty_tier, special_needs, baggage_count,
               baggage_weights, expires_at, created_at`,
		flightID, seatID,
	).Scan(
		&e.WaitlistID,
		&e.PassengerID,
		&e.CheckInID,
		&e.FlightID,
		&e.SeatID,
		&e.PriorityScore,
		&e.LoyaltyTier,
		&e.SpecialNeeds,
		&e.Baggage.Count,
		&e.Baggage.Weights,
		&e.ExpiresAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &e, nil
}

// DeleteExpired removes entries whose absolute expiry has passed.
func (r *WaitlistRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "postgres.WaitlistRepo.DeleteExpired"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM waitlist_entries WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}
