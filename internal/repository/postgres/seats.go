package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository"
)

// Expiry conditions shared between the acquire gate and the reclaim sweep.
// Both paths must agree on the expiry test; defining the fragments once
// keeps them from diverging.
const (
	lockExpiredCond        = `(status = 'locked' AND lock_deadline < now())`
	reservationExpiredCond = `(status = 'reserved' AND reservation_deadline IS NOT NULL AND reservation_deadline < now())`
)

const seatCols = `id, event_id, seat_number, status, lock_holder, lock_deadline,
	reservation_id, reservation_holder, reservation_deadline, created_at, updated_at`

type SeatRepo struct {
	pool  *pgxpool.Pool
	store *Store
	db    DB
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

// AcquireLock claims a seat for actor until the given deadline.
//
// The whole check-then-set is a single status-guarded UPDATE, so the gate
// and the write are one atomic statement: two racing callers cannot both
// match the guard. The guard admits available seats plus seats whose lock
// or provisional reservation has already lapsed (lazy expiry).
//
// Returns:
//   - *domain.Seat: the locked seat snapshot when successful.
//   - error: repository.ErrNotFound if the seat does not exist in the event.
//   - error: repository.ErrConflict if another actor holds a live claim.
func (r *SeatRepo) AcquireLock(
	ctx context.Context,
	eventID, seatID, actor int64,
	until time.Time,
) (*domain.Seat, error) {
	const op = "postgres.SeatRepo.AcquireLock"

	db := r.handle()

	var s domain.Seat
	err := db.QueryRow(ctx,
		`UPDATE seats
        	SET status = 'locked', lock_holder = $3, lock_deadline = $4,
            	reservation_id = NULL, reservation_holder = NULL, reservation_deadline = NULL,
            	updated_at = now()
      	 WHERE event_id = $1 AND id = $2
        	AND (status = 'available' OR `+lockExpiredCond+` OR `+reservationExpiredCond+`)
      	 RETURNING `+seatCols,
		eventID, seatID, actor, until,
	).Scan(
		&s.ID, &s.EventID, &s.Number, &s.Status,
		&s.LockHolder, &s.LockDeadline,
		&s.ReservationID, &s.ReservationHolder, &s.ReservationDeadline,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err == nil {
		return &s, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	// The guard did not match: distinguish a missing seat from a live claim.
	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seats WHERE event_id = $1 AND id = $2)`,
		eventID, seatID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if !exists {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil, fmt.Errorf("%s:%w", op, repository.ErrConflict)
}

// ReleaseLock returns a seat locked by actor to available.
//
// Returns:
//   - error: repository.ErrNotFound if the seat does not exist in the event.
//   - error: repository.ErrNotLocked if the seat is not locked.
//   - error: repository.ErrUnauthorized if actor is not the lock holder.
func (r *SeatRepo) ReleaseLock(ctx context.Context, eventID, seatID, actor int64) error {
	const op = "postgres.SeatRepo.ReleaseLock"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seats
        	SET status = 'available', lock_holder = NULL, lock_deadline = NULL, updated_at = now()
      	 WHERE event_id = $1 AND id = $2 AND status = 'locked' AND lock_holder = $3`,
		eventID, seatID, actor,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	err = db.QueryRow(ctx,
		`SELECT status FROM seats WHERE event_id = $1 AND id = $2`,
		eventID, seatID,
	).Scan(&status)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if domain.SeatStatus(status) != domain.SeatLocked {
		return fmt.Errorf("%s:%w", op, repository.ErrNotLocked)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrUnauthorized)
}

// ExpireLocks returns every seat with a lapsed lock to available.
//
// Returns:
//   - int64: the number of seats reclaimed.
func (r *SeatRepo) ExpireLocks(ctx context.Context) (int64, error) {
	const op = "postgres.SeatRepo.ExpireLocks"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seats
        	SET status = 'available', lock_holder = NULL, lock_deadline = NULL, updated_at = now()
      	 WHERE `+lockExpiredCond,
	)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

// ExpireReservations cancels every provisional reservation past its deadline
// and returns its seats to available. The reservation row is cancelled in
// the same transaction: a non-cancelled reservation must never reference
// seats that are no longer reserved under it.
//
// Returns:
//   - int64: the number of seats reclaimed.
func (r *SeatRepo) ExpireReservations(ctx context.Context) (int64, error) {
	const op = "postgres.SeatRepo.ExpireReservations"

	var released int64

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		if _, err := tx.Exec(ctx,
			`UPDATE reservations
            	SET status = 'cancelled', updated_at = now()
          	 WHERE status = 'confirmed' AND expires_at IS NOT NULL AND expires_at < now()`,
		); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE seats
            	SET status = 'available', reservation_id = NULL, reservation_holder = NULL,
                	reservation_deadline = NULL, updated_at = now()
          	 WHERE `+reservationExpiredCond,
		)
		if err != nil {
			return err
		}

		released = tag.RowsAffected()

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return released, nil
}
