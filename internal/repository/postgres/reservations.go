package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository"
)

type ReservationRepo struct {
	pool  *pgxpool.Pool
	store *Store
	db    DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CreateReservation atomically converts a set of seats locked by actor into
// one confirmed reservation.
//
// The seats are locked with SELECT ... FOR UPDATE in ascending id order, the
// same order every caller uses, so concurrent multi-seat attempts cannot
// deadlock. If any seat is missing, belongs to another event, or is not
// locked by actor with a live lock, the transaction rolls back and no seat
// changes state.
//
// Parameters:
//   - seatIDs: sorted ascending, no duplicates (the service layer normalizes).
//   - deadline: provisional reservation deadline; nil makes it permanent.
//
// Returns:
//   - *domain.ReservationWithSeats: the created reservation with seat numbers.
//   - error: repository.ErrNotFound if seats are missing from the event.
//   - error: repository.ErrNotLockedByActor if any seat is not locked by actor.
func (r *ReservationRepo) CreateReservation(
	ctx context.Context,
	eventID, actor int64,
	seatIDs []int64,
	totalCents int,
	deadline *time.Time,
) (*domain.ReservationWithSeats, error) {
	const op = "postgres.ReservationRepo.CreateReservation"

	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrInvalidRequest)
	}

	var out *domain.ReservationWithSeats

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		res, err := r.createReservationCore(ctx, tx, eventID, actor, seatIDs, totalCents, deadline)
		if err != nil {
			return err
		}

		out = res

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

func (r *ReservationRepo) createReservationCore(
	ctx context.Context,
	db DB,
	eventID, actor int64,
	seatIDs []int64,
	totalCents int,
	deadline *time.Time,
) (*domain.ReservationWithSeats, error) {
	var eventName string
	if err := db.QueryRow(ctx,
		`SELECT name FROM events WHERE id = $1`,
		eventID,
	).Scan(&eventName); err != nil {
		return nil, err
	}

	// Exclusive access to every target seat, in ascending id order.
	rows, err := db.Query(ctx,
		`SELECT id, seat_number, status, lock_holder, lock_deadline
       	 FROM seats
      	 WHERE event_id = $1 AND id = ANY($2)
      	 ORDER BY id
        	FOR UPDATE`,
		eventID, seatIDs,
	)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	type lockedSeat struct {
		id           int64
		number       string
		status       domain.SeatStatus
		lockHolder   *int64
		lockDeadline *time.Time
	}

	var seats []lockedSeat
	for rows.Next() {
		var s lockedSeat
		if err := rows.Scan(&s.id, &s.number, &s.status, &s.lockHolder, &s.lockDeadline); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(seats) != len(seatIDs) {
		return nil, repository.ErrNotFound
	}

	now := time.Now()
	for _, s := range seats {
		if s.status != domain.SeatLocked || s.lockHolder == nil || *s.lockHolder != actor {
			return nil, repository.ErrNotLockedByActor
		}
		if domain.DeadlineExpired(s.lockDeadline, now) {
			return nil, repository.ErrNotLockedByActor
		}
	}

	res := domain.Reservation{
		ID:         uuid.New(),
		EventID:    eventID,
		Actor:      actor,
		Status:     domain.ReservationConfirmed,
		TotalCents: totalCents,
		ExpiresAt:  deadline,
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO reservations (id, event_id, user_id, status, total_cents, expires_at)
       	 VALUES ($1, $2, $3, $4, $5, $6)
      	 RETURNING created_at, updated_at`,
		res.ID, res.EventID, res.Actor, res.Status, res.TotalCents, res.ExpiresAt,
	).Scan(&res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}

	if _, err := db.Exec(ctx,
		`UPDATE seats
        	SET status = 'reserved', reservation_id = $3, reservation_holder = $4,
            	reservation_deadline = $5, lock_holder = NULL, lock_deadline = NULL,
            	updated_at = now()
      	 WHERE event_id = $1 AND id = ANY($2)`,
		eventID, seatIDs, res.ID, actor, deadline,
	); err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	numbers := make([]string, 0, len(seats))
	for _, s := range seats {
		numbers = append(numbers, s.number)
		batch.Queue(
			`INSERT INTO reservation_seats (reservation_id, seat_id, seat_number)
         	 VALUES ($1, $2, $3)`,
			res.ID, s.id, s.number,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}

	return &domain.ReservationWithSeats{
		Reservation: res,
		EventName:   eventName,
		SeatNumbers: numbers,
	}, nil
}

// CancelReservation marks a reservation cancelled and releases exactly the
// seats still reserved under it. Seats the sweep already reclaimed, or that
// another actor has since locked, are untouched.
//
// Returns:
//   - int64: the event ID, for cache invalidation.
//   - error: repository.ErrNotFound if the reservation is unknown or already
//     cancelled.
//   - error: repository.ErrUnauthorized if actor does not own it.
func (r *ReservationRepo) CancelReservation(ctx context.Context, id uuid.UUID, actor int64) (int64, error) {
	const op = "postgres.ReservationRepo.CancelReservation"

	var eventID int64

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		var owner int64
		var status domain.ReservationStatus

		err := tx.QueryRow(ctx,
			`SELECT event_id, user_id, status FROM reservations WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&eventID, &owner, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return err
		}

		if owner != actor {
			return repository.ErrUnauthorized
		}

		if status == domain.ReservationCancelled {
			return repository.ErrNotFound
		}

		if _, err := tx.Exec(ctx,
			`UPDATE reservations SET status = 'cancelled', updated_at = now() WHERE id = $1`,
			id,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE seats
            	SET status = 'available', reservation_id = NULL, reservation_holder = NULL,
                	reservation_deadline = NULL, updated_at = now()
          	 WHERE reservation_id = $1 AND status = 'reserved'`,
			id,
		); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return eventID, nil
}

// ListByActor returns the actor's reservation history, newest first.
// Cancelled reservations are kept: cancellation is a status change, not a
// delete.
func (r *ReservationRepo) ListByActor(ctx context.Context, actor int64) ([]domain.ReservationWithSeats, error) {
	const op = "postgres.ReservationRepo.ListByActor"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT r.id, r.event_id, r.user_id, r.status, r.total_cents, r.expires_at,
            	r.created_at, r.updated_at, e.name,
            	COALESCE(array_agg(rs.seat_number ORDER BY rs.seat_number)
                	FILTER (WHERE rs.seat_number IS NOT NULL), '{}')
       	 FROM reservations r
       	 JOIN events e ON e.id = r.event_id
       	 LEFT JOIN reservation_seats rs ON rs.reservation_id = r.id
      	 WHERE r.user_id = $1
      	 GROUP BY r.id, e.name
      	 ORDER BY r.created_at DESC`,
		actor,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.ReservationWithSeats
	for rows.Next() {
		var rw domain.ReservationWithSeats
		if err := rows.Scan(
			&rw.ID, &rw.EventID, &rw.Actor, &rw.Status, &rw.TotalCents, &rw.ExpiresAt,
			&rw.CreatedAt, &rw.UpdatedAt, &rw.EventName, &rw.SeatNumbers,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// GetWithSeats retrieves one reservation with its seat numbers.
//
// Returns:
//   - error: repository.ErrNotFound if the reservation does not exist.
func (r *ReservationRepo) GetWithSeats(ctx context.Context, id uuid.UUID) (*domain.ReservationWithSeats, error) {
	const op = "postgres.ReservationRepo.GetWithSeats"

	db := r.handle()

	var rw domain.ReservationWithSeats
	err := db.QueryRow(ctx,
		`SELECT r.id, r.event_id, r.user_id, r.status, r.total_cents, r.expires_at,
            	r.created_at, r.updated_at, e.name,
            	COALESCE(array_agg(rs.seat_number ORDER BY rs.seat_number)
                	FILTER (WHERE rs.seat_number IS NOT NULL), '{}')
       	 FROM reservations r
       	 JOIN events e ON e.id = r.event_id
       	 LEFT JOIN reservation_seats rs ON rs.reservation_id = r.id
      	 WHERE r.id = $1
      	 GROUP BY r.id, e.name`,
		id,
	).Scan(
		&rw.ID, &rw.EventID, &rw.Actor, &rw.Status, &rw.TotalCents, &rw.ExpiresAt,
		&rw.CreatedAt, &rw.UpdatedAt, &rw.EventName, &rw.SeatNumbers,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &rw, nil
}
