package service

import (
	"log/slog"

	"github.com/ivankosh/seatwise/internal/queue"
	redisx "github.com/ivankosh/seatwise/internal/redis"
	"github.com/ivankosh/seatwise/internal/repository"
	redisrepo "github.com/ivankosh/seatwise/internal/repository/redis"
	"github.com/ivankosh/seatwise/internal/service/admin"
	"github.com/ivankosh/seatwise/internal/service/query"
	"github.com/ivankosh/seatwise/internal/service/reservation"
	"github.com/ivankosh/seatwise/internal/service/seatlock"
)

// Stores bundles the persistence interfaces the services consume. Both the
// postgres and the in-memory store satisfy all three.
type Stores struct {
	Seats        repository.SeatStore
	Reservations repository.ReservationStore
	Events       repository.EventStore
}

type Services struct {
	SeatLock    *seatlock.Service
	Reservation *reservation.Service
	Query       *query.Service
	Admin       *admin.Service
}

type Config struct {
	SeatLock    seatlock.Config
	Reservation reservation.Config
	Query       query.Config
}

func NewServices(
	stores Stores,
	cache *redisrepo.Cache,
	pubsub *redisx.SeatsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	publisher *queue.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		SeatLock:    seatlock.New(stores.Seats, cache, pubsub, limiter, cfg.SeatLock),
		Reservation: reservation.New(stores.Reservations, stores.Events, cache, pubsub, publisher, cfg.Reservation),
		Query:       query.New(stores.Events, cache, cfg.Query),
		Admin:       admin.New(stores.Events, cache, logger),
	}
}
