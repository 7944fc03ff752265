package reclaimer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivankosh/seatwise/internal/domain"
)

type countingSeatStore struct {
	lockSweeps        atomic.Int64
	reservationSweeps atomic.Int64
	lockErr           error
}

func (s *countingSeatStore) ExpireLocks(ctx context.Context) (int64, error) {
	s.lockSweeps.Add(1)
	if s.lockErr != nil {
		return 0, s.lockErr
	}
	return 1, nil
}

func (s *countingSeatStore) ExpireReservations(ctx context.Context) (int64, error) {
	s.reservationSweeps.Add(1)
	return 0, nil
}

func (s *countingSeatStore) AcquireLock(ctx context.Context, eventID, seatID, actor int64, until time.Time) (*domain.Seat, error) {
	panic("not used")
}

func (s *countingSeatStore) ReleaseLock(ctx context.Context, eventID, seatID, actor int64) error {
	panic("not used")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	store := &countingSeatStore{}
	r := New(store, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want deadline exceeded", err)
	}

	if got := store.lockSweeps.Load(); got < 2 {
		t.Fatalf("lock sweeps = %d, want at least 2", got)
	}
	if got := store.reservationSweeps.Load(); got < 2 {
		t.Fatalf("reservation sweeps = %d, want at least 2", got)
	}
}

func TestRunContinuesPastSweepErrors(t *testing.T) {
	store := &countingSeatStore{lockErr: errors.New("db down")}
	r := New(store, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	_ = r.Run(ctx)

	// a failing lock sweep must not stop the loop or skip the
	// reservation sweep of the same tick
	if got := store.lockSweeps.Load(); got < 2 {
		t.Fatalf("lock sweeps = %d, want at least 2", got)
	}
	if got := store.reservationSweeps.Load(); got < 2 {
		t.Fatalf("reservation sweeps = %d, want at least 2", got)
	}
}
