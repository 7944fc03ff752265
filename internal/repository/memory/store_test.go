package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository"
)

func newEvent(t *testing.T, s *Store, seatNumbers ...string) (int64, []int64) {
	t.Helper()

	ctx := context.Background()

	eventID, err := s.CreateEvent(ctx, domain.Event{
		Name:     "show-" + uuid.NewString(),
		StartsAt: time.Now().Add(24 * time.Hour),
	}, seatNumbers)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	views, err := s.ListEventSeats(ctx, eventID)
	if err != nil {
		t.Fatalf("ListEventSeats() error = %v", err)
	}

	ids := make([]int64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}

	return eventID, ids
}

func mustLock(t *testing.T, s *Store, eventID, seatID, actor int64, until time.Time) {
	t.Helper()

	if _, err := s.AcquireLock(context.Background(), eventID, seatID, actor, until); err != nil {
		t.Fatalf("AcquireLock(seat %d, actor %d) error = %v", seatID, actor, err)
	}
}

func TestAcquireLockMutualExclusion(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1")
	until := time.Now().Add(5 * time.Minute)

	const racers = 50

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []int64
		conflicts int
	)

	for i := range racers {
		actor := int64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AcquireLock(context.Background(), eventID, seats[0], actor, until)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, actor)
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
	if conflicts != racers-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, racers-1)
	}

	views, err := s.ListEventSeats(context.Background(), eventID)
	if err != nil {
		t.Fatalf("ListEventSeats() error = %v", err)
	}
	if got := *views[0].LockHolder; got != winners[0] {
		t.Fatalf("lock holder = %d, want winner %d", got, winners[0])
	}
}

func TestAcquireLockLazyExpiry(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1")
	ctx := context.Background()

	// deadline already in the past: the claim is dead on arrival
	mustLock(t, s, eventID, seats[0], 1, time.Now().Add(-time.Second))

	// the sweep has not run, but a new claimant walks right through
	seat, err := s.AcquireLock(ctx, eventID, seats[0], 2, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("AcquireLock() over lapsed lock error = %v", err)
	}
	if *seat.LockHolder != 2 {
		t.Fatalf("lock holder = %d, want 2", *seat.LockHolder)
	}
}

func TestAcquireLockUnknownSeat(t *testing.T) {
	s := NewStore()
	eventID, _ := newEvent(t, s, "A1")

	_, err := s.AcquireLock(context.Background(), eventID, 9999, 1, time.Now().Add(time.Minute))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("AcquireLock() error = %v, want ErrNotFound", err)
	}

	// seat exists but under a different event
	otherEvent, otherSeats := newEvent(t, s, "B1")
	_ = otherEvent
	_, err = s.AcquireLock(context.Background(), eventID, otherSeats[0], 1, time.Now().Add(time.Minute))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("AcquireLock() cross-event error = %v, want ErrNotFound", err)
	}
}

func TestReleaseLock(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1")
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	t.Run("not locked", func(t *testing.T) {
		if err := s.ReleaseLock(ctx, eventID, seats[0], 1); !errors.Is(err, repository.ErrNotLocked) {
			t.Fatalf("ReleaseLock() error = %v, want ErrNotLocked", err)
		}
	})

	t.Run("wrong actor", func(t *testing.T) {
		mustLock(t, s, eventID, seats[0], 1, until)
		if err := s.ReleaseLock(ctx, eventID, seats[0], 2); !errors.Is(err, repository.ErrUnauthorized) {
			t.Fatalf("ReleaseLock() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("holder releases and seat is claimable again", func(t *testing.T) {
		if err := s.ReleaseLock(ctx, eventID, seats[0], 1); err != nil {
			t.Fatalf("ReleaseLock() error = %v", err)
		}
		mustLock(t, s, eventID, seats[0], 2, until)
	})
}

func TestExpireLocks(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2", "A3")
	ctx := context.Background()

	mustLock(t, s, eventID, seats[0], 1, time.Now().Add(-time.Second))
	mustLock(t, s, eventID, seats[1], 2, time.Now().Add(-time.Second))
	mustLock(t, s, eventID, seats[2], 3, time.Now().Add(time.Hour))

	released, err := s.ExpireLocks(ctx)
	if err != nil {
		t.Fatalf("ExpireLocks() error = %v", err)
	}
	if released != 2 {
		t.Fatalf("released = %d, want 2", released)
	}

	// a second sweep finds nothing: reclaim is idempotent
	released, err = s.ExpireLocks(ctx)
	if err != nil {
		t.Fatalf("ExpireLocks() error = %v", err)
	}
	if released != 0 {
		t.Fatalf("released = %d, want 0", released)
	}

	counts, err := s.CountsByStatus(ctx, eventID)
	if err != nil {
		t.Fatalf("CountsByStatus() error = %v", err)
	}
	if counts.Available != 2 || counts.Locked != 1 {
		t.Fatalf("counts = %+v, want 2 available / 1 locked", counts)
	}
}

func TestCreateReservationAllOrNothing(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2", "A3")
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	mustLock(t, s, eventID, seats[0], 1, until)
	mustLock(t, s, eventID, seats[1], 1, until)
	mustLock(t, s, eventID, seats[2], 2, until) // held by someone else

	_, err := s.CreateReservation(ctx, eventID, 1, seats, 30000, nil)
	if !errors.Is(err, repository.ErrNotLockedByActor) {
		t.Fatalf("CreateReservation() error = %v, want ErrNotLockedByActor", err)
	}

	// nothing changed: actor 1 still holds its two locks
	views, err := s.ListEventSeats(ctx, eventID)
	if err != nil {
		t.Fatalf("ListEventSeats() error = %v", err)
	}
	for _, v := range views {
		if v.Status != domain.SeatLocked {
			t.Fatalf("seat %s status = %v, want locked", v.Number, v.Status)
		}
	}
}

func TestCreateReservation(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2")
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	mustLock(t, s, eventID, seats[0], 1, until)
	mustLock(t, s, eventID, seats[1], 1, until)

	// duplicated ids must not trip the validation or double-count
	res, err := s.CreateReservation(ctx, eventID, 1, []int64{seats[0], seats[1], seats[0]}, 20000, nil)
	if err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}
	if res.Status != domain.ReservationConfirmed {
		t.Fatalf("status = %v, want confirmed", res.Status)
	}
	if len(res.SeatNumbers) != 2 {
		t.Fatalf("seat numbers = %v, want 2", res.SeatNumbers)
	}
	if res.TotalCents != 20000 {
		t.Fatalf("total = %d, want 20000", res.TotalCents)
	}

	views, err := s.ListEventSeats(ctx, eventID)
	if err != nil {
		t.Fatalf("ListEventSeats() error = %v", err)
	}
	for _, v := range views {
		if v.Status != domain.SeatReserved {
			t.Fatalf("seat %s status = %v, want reserved", v.Number, v.Status)
		}
		if v.ReservationID == nil || *v.ReservationID != res.ID {
			t.Fatalf("seat %s reservation id = %v, want %v", v.Number, v.ReservationID, res.ID)
		}
	}
}

func TestCreateReservationLapsedLock(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1")
	ctx := context.Background()

	mustLock(t, s, eventID, seats[0], 1, time.Now().Add(-time.Second))

	_, err := s.CreateReservation(ctx, eventID, 1, seats, 10000, nil)
	if !errors.Is(err, repository.ErrNotLockedByActor) {
		t.Fatalf("CreateReservation() over lapsed lock error = %v, want ErrNotLockedByActor", err)
	}
}

func TestCancelReservation(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2")
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	mustLock(t, s, eventID, seats[0], 1, until)
	mustLock(t, s, eventID, seats[1], 1, until)

	res, err := s.CreateReservation(ctx, eventID, 1, seats, 20000, nil)
	if err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}

	t.Run("non-owner rejected", func(t *testing.T) {
		if _, err := s.CancelReservation(ctx, res.ID, 2); !errors.Is(err, repository.ErrUnauthorized) {
			t.Fatalf("CancelReservation() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("owner cancels and seats come back", func(t *testing.T) {
		gotEventID, err := s.CancelReservation(ctx, res.ID, 1)
		if err != nil {
			t.Fatalf("CancelReservation() error = %v", err)
		}
		if gotEventID != eventID {
			t.Fatalf("event id = %d, want %d", gotEventID, eventID)
		}

		counts, err := s.CountsByStatus(ctx, eventID)
		if err != nil {
			t.Fatalf("CountsByStatus() error = %v", err)
		}
		if counts.Available != 2 {
			t.Fatalf("available = %d, want 2", counts.Available)
		}

		// cancelled, not deleted
		rw, err := s.GetWithSeats(ctx, res.ID)
		if err != nil {
			t.Fatalf("GetWithSeats() error = %v", err)
		}
		if rw.Status != domain.ReservationCancelled {
			t.Fatalf("status = %v, want cancelled", rw.Status)
		}
	})

	t.Run("already cancelled reads as not found", func(t *testing.T) {
		if _, err := s.CancelReservation(ctx, res.ID, 1); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("CancelReservation() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := s.CancelReservation(ctx, uuid.New(), 1); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("CancelReservation() error = %v, want ErrNotFound", err)
		}
	})
}

func TestCancelReleasesOnlyOwnSeats(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2")
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	mustLock(t, s, eventID, seats[0], 1, until)
	res1, err := s.CreateReservation(ctx, eventID, 1, seats[:1], 10000, nil)
	if err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}

	mustLock(t, s, eventID, seats[1], 2, until)
	if _, err := s.CreateReservation(ctx, eventID, 2, seats[1:], 10000, nil); err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}

	if _, err := s.CancelReservation(ctx, res1.ID, 1); err != nil {
		t.Fatalf("CancelReservation() error = %v", err)
	}

	counts, err := s.CountsByStatus(ctx, eventID)
	if err != nil {
		t.Fatalf("CountsByStatus() error = %v", err)
	}
	if counts.Available != 1 || counts.Reserved != 1 {
		t.Fatalf("counts = %+v, want 1 available / 1 reserved", counts)
	}
}

func TestExpireReservations(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2")
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	mustLock(t, s, eventID, seats[0], 1, until)
	mustLock(t, s, eventID, seats[1], 1, until)

	deadline := time.Now().Add(-time.Second)
	res, err := s.CreateReservation(ctx, eventID, 1, seats, 20000, &deadline)
	if err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}

	released, err := s.ExpireReservations(ctx)
	if err != nil {
		t.Fatalf("ExpireReservations() error = %v", err)
	}
	if released != 2 {
		t.Fatalf("released = %d, want 2", released)
	}

	rw, err := s.GetWithSeats(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetWithSeats() error = %v", err)
	}
	if rw.Status != domain.ReservationCancelled {
		t.Fatalf("status = %v, want cancelled", rw.Status)
	}

	counts, err := s.CountsByStatus(ctx, eventID)
	if err != nil {
		t.Fatalf("CountsByStatus() error = %v", err)
	}
	if counts.Available != 2 {
		t.Fatalf("available = %d, want 2", counts.Available)
	}

	// permanent reservations are never swept
	mustLock(t, s, eventID, seats[0], 2, until)
	if _, err := s.CreateReservation(ctx, eventID, 2, seats[:1], 10000, nil); err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}
	released, err = s.ExpireReservations(ctx)
	if err != nil {
		t.Fatalf("ExpireReservations() error = %v", err)
	}
	if released != 0 {
		t.Fatalf("released = %d, want 0", released)
	}
}

func TestCountsReflectLazyExpiry(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2")
	ctx := context.Background()

	mustLock(t, s, eventID, seats[0], 1, time.Now().Add(-time.Second))
	mustLock(t, s, eventID, seats[1], 2, time.Now().Add(time.Hour))

	counts, err := s.CountsByStatus(ctx, eventID)
	if err != nil {
		t.Fatalf("CountsByStatus() error = %v", err)
	}
	if counts.Available != 1 || counts.Locked != 1 {
		t.Fatalf("counts = %+v, want 1 available / 1 locked", counts)
	}

	views, err := s.ListEventSeats(ctx, eventID)
	if err != nil {
		t.Fatalf("ListEventSeats() error = %v", err)
	}
	if views[0].Locked {
		t.Fatal("lapsed lock reported as live")
	}
	if !views[1].Locked {
		t.Fatal("live lock not reported")
	}
}

// Two actors race lock-then-reserve on the same seat; the seat must end up
// reserved by exactly one of them.
func TestLockReserveRace(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1")
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []int64
	)

	for _, actor := range []int64{1, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := s.AcquireLock(ctx, eventID, seats[0], actor, time.Now().Add(time.Minute)); err != nil {
				return
			}
			if _, err := s.CreateReservation(ctx, eventID, actor, seats, 10000, nil); err != nil {
				return
			}

			mu.Lock()
			succeeded = append(succeeded, actor)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(succeeded) != 1 {
		t.Fatalf("reservations succeeded for %v, want exactly one actor", succeeded)
	}

	views, err := s.ListEventSeats(ctx, eventID)
	if err != nil {
		t.Fatalf("ListEventSeats() error = %v", err)
	}
	if views[0].Status != domain.SeatReserved {
		t.Fatalf("seat status = %v, want reserved", views[0].Status)
	}
	if *views[0].ReservationHolder != succeeded[0] {
		t.Fatalf("reservation holder = %d, want %d", *views[0].ReservationHolder, succeeded[0])
	}
}

func TestListByActor(t *testing.T) {
	s := NewStore()
	eventID, seats := newEvent(t, s, "A1", "A2")
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	mustLock(t, s, eventID, seats[0], 1, until)
	if _, err := s.CreateReservation(ctx, eventID, 1, seats[:1], 10000, nil); err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}

	mustLock(t, s, eventID, seats[1], 2, until)
	if _, err := s.CreateReservation(ctx, eventID, 2, seats[1:], 10000, nil); err != nil {
		t.Fatalf("CreateReservation() error = %v", err)
	}

	mine, err := s.ListByActor(ctx, 1)
	if err != nil {
		t.Fatalf("ListByActor() error = %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("len = %d, want 1", len(mine))
	}
	if mine[0].Actor != 1 {
		t.Fatalf("actor = %d, want 1", mine[0].Actor)
	}
}
