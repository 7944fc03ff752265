package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankosh/seatwise/internal/domain"
)

// The seat state machine. These transitions assume the caller already holds
// exclusive access to the seat (a row lock or the seat's mutex); they contain
// the gating checks but not the mutual exclusion itself. The postgres store
// encodes the same gates as status-guarded UPDATEs.

// AcquireSeatLock moves a seat to locked for actor. The gate admits
// available seats and seats whose lock or provisional reservation has
// lapsed at now.
func AcquireSeatLock(s *domain.Seat, actor int64, until, now time.Time) error {
	if !s.EffectivelyAvailable(now) {
		return ErrConflict
	}

	s.Status = domain.SeatLocked
	s.LockHolder = &actor
	s.LockDeadline = &until
	s.ReservationID = nil
	s.ReservationHolder = nil
	s.ReservationDeadline = nil
	s.UpdatedAt = now

	return nil
}

// ReleaseSeatLock returns a locked seat to available. Only the lock holder
// may release; releasing a non-locked seat is an explicit error, not a
// no-op.
func ReleaseSeatLock(s *domain.Seat, actor int64, now time.Time) error {
	if s.Status != domain.SeatLocked {
		return ErrNotLocked
	}

	if s.LockHolder == nil || *s.LockHolder != actor {
		return ErrUnauthorized
	}

	resetSeat(s, now)

	return nil
}

// FinalizeSeatReservation converts a seat locked by actor into a reserved
// seat under the given reservation. A nil deadline makes the hold
// permanent. The lock must still be live: a lapsed lock means the actor's
// claim is gone even if the sweep has not reclaimed the seat yet.
func FinalizeSeatReservation(s *domain.Seat, actor int64, reservationID uuid.UUID, deadline *time.Time, now time.Time) error {
	if s.Status != domain.SeatLocked || s.LockHolder == nil || *s.LockHolder != actor {
		return ErrNotLockedByActor
	}

	if domain.DeadlineExpired(s.LockDeadline, now) {
		return ErrNotLockedByActor
	}

	s.Status = domain.SeatReserved
	s.ReservationID = &reservationID
	s.ReservationHolder = &actor
	s.ReservationDeadline = deadline
	s.LockHolder = nil
	s.LockDeadline = nil
	s.UpdatedAt = now

	return nil
}

// ReleaseSeatReservation unconditionally resets a seat to available. Used by
// cancellation and by the reclaim sweep; resetting an already-available seat
// is a harmless no-op.
func ReleaseSeatReservation(s *domain.Seat, now time.Time) {
	resetSeat(s, now)
}

func resetSeat(s *domain.Seat, now time.Time) {
	s.Status = domain.SeatAvailable
	s.LockHolder = nil
	s.LockDeadline = nil
	s.ReservationID = nil
	s.ReservationHolder = nil
	s.ReservationDeadline = nil
	s.UpdatedAt = now
}
