package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ivankosh/seatwise/internal/domain"
)

// SeatStore is the per-seat mutual-exclusion boundary. Every method is a
// single atomic check-then-set on one seat row; implementations must
// guarantee that two concurrent AcquireLock calls on the same seat cannot
// both succeed.
type SeatStore interface {
	// AcquireLock claims a seat for actor until the given deadline. The gate
	// admits available seats and seats whose previous lock or provisional
	// reservation has lapsed. Returns ErrNotFound for an unknown seat,
	// ErrConflict when another actor holds a live claim.
	AcquireLock(ctx context.Context, eventID, seatID, actor int64, until time.Time) (*domain.Seat, error)

	// ReleaseLock returns a seat locked by actor to available. Returns
	// ErrNotFound, ErrNotLocked when the seat is not locked, ErrUnauthorized
	// when actor is not the lock holder.
	ReleaseLock(ctx context.Context, eventID, seatID, actor int64) error

	// ExpireLocks atomically returns every seat with a lapsed lock to
	// available and reports how many were reclaimed.
	ExpireLocks(ctx context.Context) (int64, error)

	// ExpireReservations cancels every provisional reservation past its
	// deadline, returning its seats to available, and reports how many
	// seats were reclaimed.
	ExpireReservations(ctx context.Context) (int64, error)
}

// ReservationStore owns reservation records and the atomic multi-seat
// reserve path. CreateReservation must take per-seat exclusive access in
// ascending seat-id order so concurrent multi-seat attempts cannot deadlock.
type ReservationStore interface {
	// CreateReservation converts a set of seats locked by actor into one
	// confirmed reservation, all or nothing: if any seat is missing,
	// belongs to another event, or is not locked by actor with a live lock,
	// no seat changes state. seatIDs must be sorted ascending and free of
	// duplicates. A nil deadline makes the reservation permanent.
	CreateReservation(ctx context.Context, eventID, actor int64, seatIDs []int64, totalCents int, deadline *time.Time) (*domain.ReservationWithSeats, error)

	// CancelReservation marks a reservation cancelled and releases exactly
	// the seats still reserved under it. Returns the event ID for cache
	// invalidation. ErrNotFound covers unknown and already-cancelled
	// reservations; ErrUnauthorized an owner mismatch.
	CancelReservation(ctx context.Context, id uuid.UUID, actor int64) (int64, error)

	ListByActor(ctx context.Context, actor int64) ([]domain.ReservationWithSeats, error)
	GetWithSeats(ctx context.Context, id uuid.UUID) (*domain.ReservationWithSeats, error)
}

// EventStore is the resource registry: the catalog of events and their seat
// sets, plus the computed read side. No concurrency logic of its own.
type EventStore interface {
	CreateEvent(ctx context.Context, ev domain.Event, seatNumbers []string) (int64, error)
	UpdateEventInfo(ctx context.Context, id int64, name, description, location string) error
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.EventSummary, error)
	CountsByStatus(ctx context.Context, eventID int64) (*domain.EventCounts, error)
	ListEventSeats(ctx context.Context, eventID int64) ([]domain.SeatView, error)
}
