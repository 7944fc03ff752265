package seatlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivankosh/seatwise/internal/domain"
	redisx "github.com/ivankosh/seatwise/internal/redis"
	"github.com/ivankosh/seatwise/internal/repository"
	redisrepo "github.com/ivankosh/seatwise/internal/repository/redis"
)

type Config struct {
	MinLockTTL time.Duration
	MaxLockTTL time.Duration
	LockTTL    time.Duration
}

// Service is the seat state machine's front door: it owns the time-bounded
// claim an actor takes on a single seat before reserving it. The mutual
// exclusion itself lives in the store; this layer adds the TTL policy, rate
// limiting and cache fan-out.
type Service struct {
	seats   repository.SeatStore
	cache   *redisrepo.Cache
	pubsub  *redisx.SeatsPubSub
	limiter *redisrepo.SlidingWindowLimiter
	cfg     Config
}

func New(
	seats repository.SeatStore,
	cache *redisrepo.Cache,
	pubsub *redisx.SeatsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.MinLockTTL <= 0 {
		cfg.MinLockTTL = 15 * time.Second
	}

	if cfg.MaxLockTTL <= 0 || cfg.MaxLockTTL < cfg.MinLockTTL {
		cfg.MaxLockTTL = 10 * time.Minute
	}

	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}

	return &Service{
		seats:   seats,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		cfg:     cfg,
	}
}

// Acquire locks a seat for the actor for the configured hold duration.
//
// Parameters:
//   - ctx: request-scoped context.
//   - actor: authenticated identity taking the lock.
//   - eventID, seatID: the seat to claim.
//   - rlKey: rate-limit bucket for this caller; empty disables limiting.
//
// Returns:
//   - *domain.Seat: seat snapshot with the absolute lock deadline.
//   - error: seatlock.ErrSeatNotFound if the seat is unknown.
//   - error: seatlock.ErrSeatConflict if another actor holds a live claim.
//   - error: seatlock.ErrRateLimited when the caller is over the lock budget.
func (s *Service) Acquire(
	ctx context.Context,
	actor, eventID, seatID int64,
	rlKey string,
) (*domain.Seat, error) {
	const op = "service.seatlock.Acquire"

	if s.limiter != nil && rlKey != "" {
		dec, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !dec.Allowed {
			return nil, fmt.Errorf("%s:%w: retry in %s", op, ErrRateLimited, dec.RetryAfter)
		}
	}

	until := time.Now().Add(s.clampTTL(s.cfg.LockTTL))

	seat, err := s.seats.AcquireLock(ctx, eventID, seatID, actor, until)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrSeatNotFound)
		}

		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrSeatConflict)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, eventID)

	return seat, nil
}

// Release unlocks a seat previously locked by the actor.
//
// Returns:
//   - error: seatlock.ErrSeatNotFound if the seat is unknown.
//   - error: seatlock.ErrNotLocked if the seat is not locked at all.
//   - error: seatlock.ErrNotLockHolder if another actor holds the lock.
func (s *Service) Release(ctx context.Context, actor, eventID, seatID int64) error {
	const op = "service.seatlock.Release"

	err := s.seats.ReleaseLock(ctx, eventID, seatID, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrSeatNotFound)
		}

		if errors.Is(err, repository.ErrNotLocked) {
			return fmt.Errorf("%s:%w", op, ErrNotLocked)
		}

		if errors.Is(err, repository.ErrUnauthorized) {
			return fmt.Errorf("%s:%w", op, ErrNotLockHolder)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, eventID)

	return nil
}

func (s *Service) invalidate(ctx context.Context, eventID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, eventID)
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishSeatsChanged(ctx, eventID)
	}
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl < s.cfg.MinLockTTL {
		return s.cfg.MinLockTTL
	}

	if ttl > s.cfg.MaxLockTTL {
		return s.cfg.MaxLockTTL
	}

	return ttl
}
