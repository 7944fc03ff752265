// Package reclaimer runs the background sweep that returns seats held past
// their deadline to the pool. It is a safety net: reads and writes already
// treat lapsed deadlines as free, so a delayed or skipped tick never admits
// a stale hold, it only postpones the visible cleanup.
package reclaimer

import (
	"context"
	"log/slog"
	"time"

	"github.com/ivankosh/seatwise/internal/repository"
)

type Reclaimer struct {
	seats    repository.SeatStore
	interval time.Duration
	logger   *slog.Logger
}

func New(seats repository.SeatStore, interval time.Duration, logger *slog.Logger) *Reclaimer {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Reclaimer{
		seats:    seats,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. Each tick is
// independent: an error is logged and the next tick proceeds.
func (r *Reclaimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reclaimer started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reclaimer stopped")
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reclaimer) sweep(ctx context.Context) {
	locks, err := r.seats.ExpireLocks(ctx)
	if err != nil {
		r.logger.Error("expire locks failed", "error", err)
	}

	reservations, err := r.seats.ExpireReservations(ctx)
	if err != nil {
		r.logger.Error("expire reservations failed", "error", err)
	}

	if locks > 0 || reservations > 0 {
		r.logger.Info("reclaimed expired holds",
			"locks_released", locks,
			"reservations_cancelled", reservations,
		)
	}
}
