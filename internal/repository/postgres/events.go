package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository"
)

// Effective-status expressions for the read side: a seat with a lapsed lock
// or lapsed provisional reservation counts as available before the sweep
// reclaims it, reusing the same expiry fragments as the sweep itself.
const (
	countAvailableExpr = `(status = 'available' OR ` + lockExpiredCond + ` OR ` + reservationExpiredCond + `)`
	countLockedExpr    = `(status = 'locked' AND NOT ` + lockExpiredCond + `)`
	countReservedExpr  = `(status = 'reserved' AND NOT ` + reservationExpiredCond + `)`
)

type EventRepo struct {
	pool  *pgxpool.Pool
	store *Store
	db    DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CreateEvent inserts an event and initializes its seat set, one available
// seat per label, in a single transaction.
//
// Returns:
//   - int64: the new event ID.
//   - error: repository.ErrConflict on a duplicate seat label.
func (r *EventRepo) CreateEvent(ctx context.Context, ev domain.Event, seatNumbers []string) (int64, error) {
	const op = "postgres.EventRepo.CreateEvent"

	var eventID int64

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO events (name, description, location, starts_at, total_seats)
           	 VALUES ($1, $2, $3, $4, $5)
          	 RETURNING id`,
			ev.Name, ev.Description, ev.Location, ev.StartsAt, len(seatNumbers),
		).Scan(&eventID)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, num := range seatNumbers {
			batch.Queue(
				`INSERT INTO seats (event_id, seat_number, status)
             	 VALUES ($1, $2, 'available')`,
				eventID, num,
			)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return eventID, nil
}

// UpdateEventInfo edits event metadata. Capacity and the seat set are fixed
// at creation.
//
// Returns:
//   - error: repository.ErrNotFound if the event does not exist.
func (r *EventRepo) UpdateEventInfo(ctx context.Context, id int64, name, description, location string) error {
	const op = "postgres.EventRepo.UpdateEventInfo"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events
        	SET name = $2, description = $3, location = $4, updated_at = now()
      	 WHERE id = $1`,
		id, name, description, location,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// GetEvent retrieves an event by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.EventRepo.GetEvent"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT id, name, description, location, starts_at, total_seats, created_at, updated_at
       	 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.StartsAt, &e.TotalSeats, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &e, nil
}

// ListEvents lists all events with computed availability counts, soonest
// first.
func (r *EventRepo) ListEvents(ctx context.Context) ([]domain.EventSummary, error) {
	const op = "postgres.EventRepo.ListEvents"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT e.id, e.name, e.description, e.location, e.starts_at, e.total_seats,
            	e.created_at, e.updated_at,
            	COALESCE(SUM(CASE WHEN `+countAvailableExpr+` THEN 1 ELSE 0 END), 0),
            	COALESCE(SUM(CASE WHEN `+countLockedExpr+` THEN 1 ELSE 0 END), 0),
            	COALESCE(SUM(CASE WHEN `+countReservedExpr+` THEN 1 ELSE 0 END), 0)
       	 FROM events e
       	 LEFT JOIN seats s ON s.event_id = e.id
      	 GROUP BY e.id
      	 ORDER BY e.starts_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.EventSummary
	for rows.Next() {
		var es domain.EventSummary
		if err := rows.Scan(
			&es.ID, &es.Name, &es.Description, &es.Location, &es.StartsAt, &es.TotalSeats,
			&es.CreatedAt, &es.UpdatedAt,
			&es.Counts.Available, &es.Counts.Locked, &es.Counts.Reserved,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		es.Counts.Total = es.Counts.Available + es.Counts.Locked + es.Counts.Reserved
		out = append(out, es)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// CountsByStatus counts seats by effective status for an event.
//
// Returns:
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) CountsByStatus(ctx context.Context, eventID int64) (*domain.EventCounts, error) {
	const op = "postgres.EventRepo.CountsByStatus"

	db := r.handle()

	if err := r.checkEventExists(ctx, db, eventID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var ec domain.EventCounts
	err := db.QueryRow(ctx,
		`SELECT
        	COALESCE(SUM(CASE WHEN `+countAvailableExpr+` THEN 1 ELSE 0 END), 0),
        	COALESCE(SUM(CASE WHEN `+countLockedExpr+` THEN 1 ELSE 0 END), 0),
        	COALESCE(SUM(CASE WHEN `+countReservedExpr+` THEN 1 ELSE 0 END), 0)
       	 FROM seats
      	 WHERE event_id = $1`,
		eventID,
	).Scan(&ec.Available, &ec.Locked, &ec.Reserved)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	ec.Total = ec.Available + ec.Locked + ec.Reserved

	return &ec, nil
}

// ListEventSeats lists an event's seats with the stored status and the
// computed live-lock flag, ordered by seat number.
//
// Returns:
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) ListEventSeats(ctx context.Context, eventID int64) ([]domain.SeatView, error) {
	const op = "postgres.EventRepo.ListEventSeats"

	db := r.handle()

	if err := r.checkEventExists(ctx, db, eventID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT `+seatCols+`, `+countLockedExpr+`
       	 FROM seats
      	 WHERE event_id = $1
      	 ORDER BY seat_number`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.SeatView
	for rows.Next() {
		var sv domain.SeatView
		if err := rows.Scan(
			&sv.ID, &sv.EventID, &sv.Number, &sv.Status,
			&sv.LockHolder, &sv.LockDeadline,
			&sv.ReservationID, &sv.ReservationHolder, &sv.ReservationDeadline,
			&sv.CreatedAt, &sv.UpdatedAt,
			&sv.Locked,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *EventRepo) checkEventExists(ctx context.Context, db DB, eventID int64) error {
	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`,
		eventID,
	).Scan(&exists); err != nil {
		return translateDBErr(err)
	}

	if !exists {
		return repository.ErrNotFound
	}

	return nil
}
