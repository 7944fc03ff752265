package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository"
	redisrepo "github.com/ivankosh/seatwise/internal/repository/redis"
)

type Config struct {
	EventSummaryTTL time.Duration
	EventListTTL    time.Duration
	AvailabilityTTL time.Duration
	SeatMapTTL      time.Duration
}

// Service is the read side: event summaries with availability counts and
// seat maps with live-lock flags, short-TTL cached. The stored status plus
// the shared expiry predicate decide what the caller sees; a lapsed lock
// reads as available before the sweep touches it.
type Service struct {
	events repository.EventStore
	cache  *redisrepo.Cache
	cfg    Config
}

func New(events repository.EventStore, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.EventListTTL <= 0 {
		cfg.EventListTTL = 15 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 5 * time.Second
	}

	return &Service{
		events: events,
		cache:  cache,
		cfg:    cfg,
	}
}

// ListEvents returns all events with computed available/locked/reserved
// seat counts.
func (s *Service) ListEvents(ctx context.Context) ([]domain.EventSummary, error) {
	const op = "service.query.ListEvents"

	out, err := cached(ctx, s.cache, redisrepo.KeyEventList(), s.cfg.EventListTTL,
		func(ctx context.Context) ([]domain.EventSummary, error) {
			return s.events.ListEvents(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// GetEvent retrieves one event summary.
//
// Returns:
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	event, err := cached(ctx, s.cache, redisrepo.KeyEventSummary(id), s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.events.GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}

				return domain.Event{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

// CountsByStatus returns the availability counters for one event.
//
// Returns:
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) CountsByStatus(ctx context.Context, eventID int64) (*domain.EventCounts, error) {
	const op = "service.query.CountsByStatus"

	counts, err := cached(ctx, s.cache, redisrepo.KeyEventAvailability(eventID), s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.EventCounts, error) {
			ec, err := s.events.CountsByStatus(ctx, eventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.EventCounts{}, ErrEventNotFound
				}

				return domain.EventCounts{}, err
			}

			return *ec, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &counts, nil
}

// ListEventSeats returns the seat map for an event: every seat with its
// status, live-lock flag and absolute deadlines.
//
// Returns:
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) ListEventSeats(ctx context.Context, eventID int64) ([]domain.SeatView, error) {
	const op = "service.query.ListEventSeats"

	seats, err := cached(ctx, s.cache, redisrepo.KeyEventSeatMap(eventID), s.cfg.SeatMapTTL,
		func(ctx context.Context) ([]domain.SeatView, error) {
			out, err := s.events.ListEventSeats(ctx, eventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrEventNotFound
				}

				return nil, err
			}

			return out, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seats, nil
}

// cached wraps the loader with the redis read-through when a cache is
// configured; without one (memory driver, tests) it calls the loader
// directly.
func cached[T any](
	ctx context.Context,
	c *redisrepo.Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return loader(ctx)
	}

	return redisrepo.GetOrSetJSON(ctx, c, key, ttl, loader)
}
