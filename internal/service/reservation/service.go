package reservation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/queue"
	redisx "github.com/ivankosh/seatwise/internal/redis"
	"github.com/ivankosh/seatwise/internal/repository"
	redisrepo "github.com/ivankosh/seatwise/internal/repository/redis"
)

type Config struct {
	// UnitPriceCents is the flat per-seat price. Injectable, not a
	// constant: the total is always seat count × unit price.
	UnitPriceCents int

	// ReservationTTL makes confirmed reservations provisional: past this
	// deadline the sweep cancels them and reclaims the seats. Zero means
	// reservations are permanent.
	ReservationTTL time.Duration
}

// Service is the reservation aggregator: it turns a set of seats locked by
// one actor into a single confirmed reservation, all or nothing, and owns
// cancellation. Seat fields are never touched directly, only through the
// store's gated operations.
type Service struct {
	reservations repository.ReservationStore
	events       repository.EventStore
	cache        *redisrepo.Cache
	pubsub       *redisx.SeatsPubSub
	publisher    *queue.Publisher
	cfg          Config
}

func New(
	reservations repository.ReservationStore,
	events repository.EventStore,
	cache *redisrepo.Cache,
	pubsub *redisx.SeatsPubSub,
	publisher *queue.Publisher,
	cfg Config,
) *Service {
	if cfg.UnitPriceCents <= 0 {
		cfg.UnitPriceCents = 10000
	}

	return &Service{
		reservations: reservations,
		events:       events,
		cache:        cache,
		pubsub:       pubsub,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// Reserve atomically converts seats locked by actor into one confirmed
// reservation priced at seat count × unit price.
//
// Parameters:
//   - ctx: request-scoped context.
//   - actor: authenticated identity; must hold a live lock on every seat.
//   - eventID: event all seats must belong to.
//   - seatIDs: seats to reserve; deduplicated and sorted here so the store
//     can take per-seat exclusive access in a deterministic order.
//
// Returns:
//   - *domain.ReservationWithSeats: reservation id, seat numbers, price.
//   - error: reservation.ErrNoSeatsSelected for an empty set.
//   - error: reservation.ErrEventNotFound / ErrSeatsNotFound on bad targets.
//   - error: reservation.ErrSeatsNotLocked if any seat is not locked by
//     actor; no seat changes state in that case.
func (s *Service) Reserve(
	ctx context.Context,
	actor, eventID int64,
	seatIDs []int64,
) (*domain.ReservationWithSeats, error) {
	const op = "service.reservation.Reserve"

	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrNoSeatsSelected)
	}

	ids := slices.Clone(seatIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	totalCents := len(ids) * s.cfg.UnitPriceCents

	var deadline *time.Time
	if s.cfg.ReservationTTL > 0 {
		d := time.Now().Add(s.cfg.ReservationTTL)
		deadline = &d
	}

	res, err := s.reservations.CreateReservation(ctx, eventID, actor, ids, totalCents, deadline)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrSeatsNotFound)
		}

		if errors.Is(err, repository.ErrNotLockedByActor) {
			return nil, fmt.Errorf("%s:%w", op, SeatsNotLockedError{SeatIDs: ids})
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.fanOut(ctx, eventID, queue.ReservationEvent{
		Type:          queue.TypeReservationConfirmed,
		ReservationID: res.ID.String(),
		EventID:       eventID,
		Actor:         actor,
		SeatNumbers:   res.SeatNumbers,
		TotalCents:    res.TotalCents,
		OccurredAt:    time.Now(),
	})

	return res, nil
}

// Cancel cancels an actor's reservation and releases exactly its seats.
// Cancellation is a status change; the record stays for history.
//
// Returns:
//   - error: reservation.ErrReservationNotFound for an unknown or
//     already-cancelled reservation.
//   - error: reservation.ErrNotOwner if actor does not own it.
func (s *Service) Cancel(ctx context.Context, actor int64, id uuid.UUID) error {
	const op = "service.reservation.Cancel"

	eventID, err := s.reservations.CancelReservation(ctx, id, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}

		if errors.Is(err, repository.ErrUnauthorized) {
			return fmt.Errorf("%s:%w", op, ErrNotOwner)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	s.fanOut(ctx, eventID, queue.ReservationEvent{
		Type:          queue.TypeReservationCancelled,
		ReservationID: id.String(),
		EventID:       eventID,
		Actor:         actor,
		OccurredAt:    time.Now(),
	})

	return nil
}

// ListByActor returns the actor's reservation history, newest first.
func (s *Service) ListByActor(ctx context.Context, actor int64) ([]domain.ReservationWithSeats, error) {
	const op = "service.reservation.ListByActor"

	out, err := s.reservations.ListByActor(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Get retrieves one reservation owned by actor.
//
// Returns:
//   - error: reservation.ErrReservationNotFound if it does not exist.
//   - error: reservation.ErrNotOwner if actor does not own it.
func (s *Service) Get(ctx context.Context, actor int64, id uuid.UUID) (*domain.ReservationWithSeats, error) {
	const op = "service.reservation.Get"

	res, err := s.reservations.GetWithSeats(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if res.Actor != actor {
		return nil, fmt.Errorf("%s:%w", op, ErrNotOwner)
	}

	return res, nil
}

func (s *Service) fanOut(ctx context.Context, eventID int64, ev queue.ReservationEvent) {
	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, eventID)
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishSeatsChanged(ctx, eventID)
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, ev)
	}
}
