package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository/memory"
)

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("generates the seat grid row by row", func(t *testing.T) {
		store := memory.NewStore()
		svc := New(store, nil, nil)

		id, err := svc.CreateEvent(ctx, domain.Event{
			Name:     "opening night",
			StartsAt: time.Now().Add(48 * time.Hour),
		}, 2, 3)
		if err != nil {
			t.Fatalf("CreateEvent() error = %v", err)
		}

		views, err := store.ListEventSeats(ctx, id)
		if err != nil {
			t.Fatalf("ListEventSeats() error = %v", err)
		}

		want := []string{"A1", "A2", "A3", "B1", "B2", "B3"}
		if len(views) != len(want) {
			t.Fatalf("seats = %d, want %d", len(views), len(want))
		}
		for i, v := range views {
			if v.Number != want[i] {
				t.Fatalf("seat[%d] = %q, want %q", i, v.Number, want[i])
			}
			if v.Status != domain.SeatAvailable {
				t.Fatalf("seat %s status = %v, want available", v.Number, v.Status)
			}
		}

		ev, err := store.GetEvent(ctx, id)
		if err != nil {
			t.Fatalf("GetEvent() error = %v", err)
		}
		if ev.TotalSeats != 6 {
			t.Fatalf("total seats = %d, want 6", ev.TotalSeats)
		}
	})

	t.Run("rejects out-of-range layouts", func(t *testing.T) {
		svc := New(memory.NewStore(), nil, nil)

		tests := []struct {
			name        string
			rows        int
			seatsPerRow int
		}{
			{name: "zero rows", rows: 0, seatsPerRow: 10},
			{name: "zero seats per row", rows: 5, seatsPerRow: 0},
			{name: "too many rows", rows: 27, seatsPerRow: 10},
			{name: "too many seats per row", rows: 5, seatsPerRow: 201},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateEvent(ctx, domain.Event{Name: "x"}, tt.rows, tt.seatsPerRow)
				if !errors.Is(err, ErrInvalidLayout) {
					t.Fatalf("CreateEvent() error = %v, want ErrInvalidLayout", err)
				}
			})
		}
	})
}

func TestUpdateEventInfo(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := New(store, nil, nil)

	id, err := svc.CreateEvent(ctx, domain.Event{Name: "draft", StartsAt: time.Now()}, 1, 1)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if err := svc.UpdateEventInfo(ctx, id, "final", "desc", "main hall"); err != nil {
		t.Fatalf("UpdateEventInfo() error = %v", err)
	}

	ev, err := store.GetEvent(ctx, id)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if ev.Name != "final" || ev.Location != "main hall" {
		t.Fatalf("event = %+v", ev)
	}

	if err := svc.UpdateEventInfo(ctx, 999, "x", "", ""); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("UpdateEventInfo() error = %v, want ErrEventNotFound", err)
	}
}
