package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository/memory"
)

func setup(t *testing.T, cfg Config) (*Service, *memory.Store, int64, []int64) {
	t.Helper()

	store := memory.NewStore()
	svc := New(store, store, nil, nil, nil, cfg)

	eventID, err := store.CreateEvent(context.Background(), domain.Event{
		Name:     "concert",
		StartsAt: time.Now().Add(24 * time.Hour),
	}, []string{"A1", "A2", "A3"})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	views, err := store.ListEventSeats(context.Background(), eventID)
	if err != nil {
		t.Fatalf("ListEventSeats() error = %v", err)
	}
	seats := make([]int64, 0, len(views))
	for _, v := range views {
		seats = append(seats, v.ID)
	}

	return svc, store, eventID, seats
}

func lockSeats(t *testing.T, store *memory.Store, eventID, actor int64, seatIDs ...int64) {
	t.Helper()
	for _, id := range seatIDs {
		if _, err := store.AcquireLock(context.Background(), eventID, id, actor, time.Now().Add(time.Minute)); err != nil {
			t.Fatalf("AcquireLock(seat %d) error = %v", id, err)
		}
	}
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("empty seat set", func(t *testing.T) {
		svc, _, eventID, _ := setup(t, Config{})
		if _, err := svc.Reserve(ctx, 1, eventID, nil); !errors.Is(err, ErrNoSeatsSelected) {
			t.Fatalf("Reserve() error = %v, want ErrNoSeatsSelected", err)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _, _, seats := setup(t, Config{})
		if _, err := svc.Reserve(ctx, 1, 999, seats); !errors.Is(err, ErrEventNotFound) {
			t.Fatalf("Reserve() error = %v, want ErrEventNotFound", err)
		}
	})

	t.Run("unknown seats", func(t *testing.T) {
		svc, _, eventID, _ := setup(t, Config{})
		if _, err := svc.Reserve(ctx, 1, eventID, []int64{9999}); !errors.Is(err, ErrSeatsNotFound) {
			t.Fatalf("Reserve() error = %v, want ErrSeatsNotFound", err)
		}
	})

	t.Run("seats not locked by actor", func(t *testing.T) {
		svc, store, eventID, seats := setup(t, Config{})
		lockSeats(t, store, eventID, 2, seats[0]) // someone else

		_, err := svc.Reserve(ctx, 1, eventID, seats[:1])
		if !errors.Is(err, ErrSeatsNotLocked) {
			t.Fatalf("Reserve() error = %v, want ErrSeatsNotLocked", err)
		}

		var snl SeatsNotLockedError
		if !errors.As(err, &snl) {
			t.Fatalf("Reserve() error %v does not carry SeatsNotLockedError", err)
		}
	})

	t.Run("prices seats at count times unit", func(t *testing.T) {
		svc, store, eventID, seats := setup(t, Config{UnitPriceCents: 2500})
		lockSeats(t, store, eventID, 1, seats[0], seats[1])

		res, err := svc.Reserve(ctx, 1, eventID, []int64{seats[1], seats[0], seats[1]})
		if err != nil {
			t.Fatalf("Reserve() error = %v", err)
		}
		if res.TotalCents != 5000 {
			t.Fatalf("total = %d, want 5000 (2 seats after dedupe)", res.TotalCents)
		}
		if len(res.SeatNumbers) != 2 {
			t.Fatalf("seat numbers = %v, want 2", res.SeatNumbers)
		}
		if res.ExpiresAt != nil {
			t.Fatalf("expires at = %v, want nil without a ttl", res.ExpiresAt)
		}
		if res.EventName != "concert" {
			t.Fatalf("event name = %q", res.EventName)
		}
	})

	t.Run("ttl sets a provisional deadline", func(t *testing.T) {
		svc, store, eventID, seats := setup(t, Config{ReservationTTL: time.Hour})
		lockSeats(t, store, eventID, 1, seats[0])

		before := time.Now()
		res, err := svc.Reserve(ctx, 1, eventID, seats[:1])
		if err != nil {
			t.Fatalf("Reserve() error = %v", err)
		}
		if res.ExpiresAt == nil {
			t.Fatal("expires at = nil, want a deadline")
		}
		if res.ExpiresAt.Before(before.Add(time.Hour)) {
			t.Fatalf("expires at = %v, want about an hour out", res.ExpiresAt)
		}
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	svc, store, eventID, seats := setup(t, Config{})
	lockSeats(t, store, eventID, 1, seats[0])
	res, err := svc.Reserve(ctx, 1, eventID, seats[:1])
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	if err := svc.Cancel(ctx, 2, res.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Cancel() by non-owner error = %v, want ErrNotOwner", err)
	}

	if err := svc.Cancel(ctx, 1, res.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	// the seat is claimable again
	lockSeats(t, store, eventID, 3, seats[0])

	if err := svc.Cancel(ctx, 1, res.ID); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("Cancel() twice error = %v, want ErrReservationNotFound", err)
	}

	if err := svc.Cancel(ctx, 1, uuid.New()); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("Cancel() unknown id error = %v, want ErrReservationNotFound", err)
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	svc, store, eventID, seats := setup(t, Config{})
	lockSeats(t, store, eventID, 1, seats[0])
	res, err := svc.Reserve(ctx, 1, eventID, seats[:1])
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	got, err := svc.Get(ctx, 1, res.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != res.ID {
		t.Fatalf("id = %v, want %v", got.ID, res.ID)
	}

	if _, err := svc.Get(ctx, 2, res.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Get() by non-owner error = %v, want ErrNotOwner", err)
	}

	if _, err := svc.Get(ctx, 1, uuid.New()); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("Get() unknown id error = %v, want ErrReservationNotFound", err)
	}
}

func TestListByActor(t *testing.T) {
	ctx := context.Background()

	svc, store, eventID, seats := setup(t, Config{})
	lockSeats(t, store, eventID, 1, seats[0])
	lockSeats(t, store, eventID, 2, seats[1])

	if _, err := svc.Reserve(ctx, 1, eventID, seats[:1]); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if _, err := svc.Reserve(ctx, 2, eventID, seats[1:2]); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	mine, err := svc.ListByActor(ctx, 1)
	if err != nil {
		t.Fatalf("ListByActor() error = %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("len = %d, want 1", len(mine))
	}
}
