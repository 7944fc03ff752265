package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivankosh/seatwise/internal/domain"
)

func availableSeat() *domain.Seat {
	return &domain.Seat{ID: 1, EventID: 1, Number: "A1", Status: domain.SeatAvailable}
}

func lockedSeat(holder int64, deadline time.Time) *domain.Seat {
	return &domain.Seat{
		ID:           1,
		EventID:      1,
		Number:       "A1",
		Status:       domain.SeatLocked,
		LockHolder:   &holder,
		LockDeadline: &deadline,
	}
}

func TestAcquireSeatLock(t *testing.T) {
	now := time.Now()
	until := now.Add(5 * time.Minute)

	t.Run("available seat is claimed", func(t *testing.T) {
		s := availableSeat()
		if err := AcquireSeatLock(s, 7, until, now); err != nil {
			t.Fatalf("AcquireSeatLock() error = %v", err)
		}
		if s.Status != domain.SeatLocked {
			t.Fatalf("status = %v, want locked", s.Status)
		}
		if s.LockHolder == nil || *s.LockHolder != 7 {
			t.Fatalf("lock holder = %v, want 7", s.LockHolder)
		}
		if s.LockDeadline == nil || !s.LockDeadline.Equal(until) {
			t.Fatalf("lock deadline = %v, want %v", s.LockDeadline, until)
		}
	})

	t.Run("live lock rejects second claimant", func(t *testing.T) {
		s := lockedSeat(7, now.Add(time.Minute))
		if err := AcquireSeatLock(s, 8, until, now); !errors.Is(err, ErrConflict) {
			t.Fatalf("AcquireSeatLock() error = %v, want ErrConflict", err)
		}
		if *s.LockHolder != 7 {
			t.Fatalf("lock holder changed to %d", *s.LockHolder)
		}
	})

	t.Run("lapsed lock is claimed by new actor", func(t *testing.T) {
		s := lockedSeat(7, now.Add(-time.Second))
		if err := AcquireSeatLock(s, 8, until, now); err != nil {
			t.Fatalf("AcquireSeatLock() error = %v", err)
		}
		if *s.LockHolder != 8 {
			t.Fatalf("lock holder = %d, want 8", *s.LockHolder)
		}
	})

	t.Run("lapsed provisional reservation is claimed", func(t *testing.T) {
		past := now.Add(-time.Second)
		resID := uuid.New()
		holder := int64(7)
		s := &domain.Seat{
			Status:              domain.SeatReserved,
			ReservationID:       &resID,
			ReservationHolder:   &holder,
			ReservationDeadline: &past,
		}
		if err := AcquireSeatLock(s, 8, until, now); err != nil {
			t.Fatalf("AcquireSeatLock() error = %v", err)
		}
		if s.ReservationID != nil {
			t.Fatal("stale reservation fields not cleared")
		}
	})

	t.Run("permanent reservation rejects", func(t *testing.T) {
		s := &domain.Seat{Status: domain.SeatReserved}
		if err := AcquireSeatLock(s, 8, until, now); !errors.Is(err, ErrConflict) {
			t.Fatalf("AcquireSeatLock() error = %v, want ErrConflict", err)
		}
	})
}

func TestReleaseSeatLock(t *testing.T) {
	now := time.Now()

	t.Run("holder releases", func(t *testing.T) {
		s := lockedSeat(7, now.Add(time.Minute))
		if err := ReleaseSeatLock(s, 7, now); err != nil {
			t.Fatalf("ReleaseSeatLock() error = %v", err)
		}
		if s.Status != domain.SeatAvailable || s.LockHolder != nil || s.LockDeadline != nil {
			t.Fatalf("seat not reset: %+v", s)
		}
	})

	t.Run("non-holder rejected", func(t *testing.T) {
		s := lockedSeat(7, now.Add(time.Minute))
		if err := ReleaseSeatLock(s, 8, now); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("ReleaseSeatLock() error = %v, want ErrUnauthorized", err)
		}
		if s.Status != domain.SeatLocked {
			t.Fatal("seat state changed on rejected release")
		}
	})

	t.Run("unlocking a non-locked seat is an explicit error", func(t *testing.T) {
		s := availableSeat()
		if err := ReleaseSeatLock(s, 7, now); !errors.Is(err, ErrNotLocked) {
			t.Fatalf("ReleaseSeatLock() error = %v, want ErrNotLocked", err)
		}
	})
}

func TestFinalizeSeatReservation(t *testing.T) {
	now := time.Now()
	resID := uuid.New()

	t.Run("locked by actor becomes reserved", func(t *testing.T) {
		s := lockedSeat(7, now.Add(time.Minute))
		deadline := now.Add(time.Hour)
		if err := FinalizeSeatReservation(s, 7, resID, &deadline, now); err != nil {
			t.Fatalf("FinalizeSeatReservation() error = %v", err)
		}
		if s.Status != domain.SeatReserved {
			t.Fatalf("status = %v, want reserved", s.Status)
		}
		if s.ReservationID == nil || *s.ReservationID != resID {
			t.Fatalf("reservation id = %v, want %v", s.ReservationID, resID)
		}
		if s.LockHolder != nil || s.LockDeadline != nil {
			t.Fatal("lock fields not cleared after reserve")
		}
	})

	t.Run("nil deadline makes the hold permanent", func(t *testing.T) {
		s := lockedSeat(7, now.Add(time.Minute))
		if err := FinalizeSeatReservation(s, 7, resID, nil, now); err != nil {
			t.Fatalf("FinalizeSeatReservation() error = %v", err)
		}
		if s.ReservationDeadline != nil {
			t.Fatalf("reservation deadline = %v, want nil", s.ReservationDeadline)
		}
	})

	t.Run("locked by another actor rejected", func(t *testing.T) {
		s := lockedSeat(7, now.Add(time.Minute))
		if err := FinalizeSeatReservation(s, 8, resID, nil, now); !errors.Is(err, ErrNotLockedByActor) {
			t.Fatalf("FinalizeSeatReservation() error = %v, want ErrNotLockedByActor", err)
		}
	})

	t.Run("lapsed lock rejected even before the sweep", func(t *testing.T) {
		s := lockedSeat(7, now.Add(-time.Second))
		if err := FinalizeSeatReservation(s, 7, resID, nil, now); !errors.Is(err, ErrNotLockedByActor) {
			t.Fatalf("FinalizeSeatReservation() error = %v, want ErrNotLockedByActor", err)
		}
	})

	t.Run("available seat rejected", func(t *testing.T) {
		s := availableSeat()
		if err := FinalizeSeatReservation(s, 7, resID, nil, now); !errors.Is(err, ErrNotLockedByActor) {
			t.Fatalf("FinalizeSeatReservation() error = %v, want ErrNotLockedByActor", err)
		}
	})
}

func TestReleaseSeatReservation(t *testing.T) {
	now := time.Now()
	resID := uuid.New()
	holder := int64(7)

	s := &domain.Seat{
		Status:            domain.SeatReserved,
		ReservationID:     &resID,
		ReservationHolder: &holder,
	}
	ReleaseSeatReservation(s, now)
	if s.Status != domain.SeatAvailable || s.ReservationID != nil || s.ReservationHolder != nil {
		t.Fatalf("seat not reset: %+v", s)
	}

	// already available: a no-op, not an error
	ReleaseSeatReservation(s, now)
	if s.Status != domain.SeatAvailable {
		t.Fatalf("status = %v, want available", s.Status)
	}
}
