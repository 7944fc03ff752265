package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository"
	redisrepo "github.com/ivankosh/seatwise/internal/repository/redis"
)

const (
	maxRows        = 26
	maxSeatsPerRow = 200
)

// Service covers the write side of the event catalogue: creating events
// with a generated seat grid and editing event info. Seat state itself is
// never touched here.
type Service struct {
	events repository.EventStore
	cache  *redisrepo.Cache
	logger *slog.Logger
}

func New(events repository.EventStore, cache *redisrepo.Cache, logger *slog.Logger) *Service {
	return &Service{
		events: events,
		cache:  cache,
		logger: logger,
	}
}

// CreateEvent inserts the event and its full seat grid in one shot. Seats
// are labelled "A1".."A<n>", "B1".. row by row; every seat starts available.
//
// Returns:
//   - int64: the new event id.
//   - error: admin.ErrInvalidLayout if rows/seatsPerRow are out of range,
//     admin.ErrEventConflict on a duplicate event name.
func (s *Service) CreateEvent(
	ctx context.Context,
	ev domain.Event,
	rows, seatsPerRow int,
) (int64, error) {
	const op = "service.admin.CreateEvent"

	if rows < 1 || rows > maxRows || seatsPerRow < 1 || seatsPerRow > maxSeatsPerRow {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidLayout)
	}

	seatNumbers := make([]string, 0, rows*seatsPerRow)
	for r := 0; r < rows; r++ {
		for n := 1; n <= seatsPerRow; n++ {
			seatNumbers = append(seatNumbers, fmt.Sprintf("%c%d", 'A'+r, n))
		}
	}

	id, err := s.events.CreateEvent(ctx, ev, seatNumbers)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s: %w", op, ErrEventConflict)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, id)

	if s.logger != nil {
		s.logger.Info("event created",
			"event_id", id,
			"name", ev.Name,
			"seats", len(seatNumbers),
		)
	}

	return id, nil
}

// UpdateEventInfo edits the descriptive fields of an event.
//
// Returns:
//   - error: admin.ErrEventNotFound if the event is not found.
func (s *Service) UpdateEventInfo(
	ctx context.Context,
	id int64,
	name, description, location string,
) error {
	const op = "service.admin.UpdateEventInfo"

	if err := s.events.UpdateEventInfo(ctx, id, name, description, location); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, id)

	return nil
}

func (s *Service) invalidate(ctx context.Context, eventID int64) {
	if s.cache == nil {
		return
	}

	if err := s.cache.InvalidateEvent(ctx, eventID); err != nil && s.logger != nil {
		s.logger.Warn("cache invalidation failed", "event_id", eventID, "error", err)
	}
}
