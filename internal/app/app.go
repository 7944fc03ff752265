package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivankosh/seatwise/internal/config"
	"github.com/ivankosh/seatwise/internal/postgres"
	"github.com/ivankosh/seatwise/internal/queue"
	"github.com/ivankosh/seatwise/internal/reclaimer"
	redisx "github.com/ivankosh/seatwise/internal/redis"
	"github.com/ivankosh/seatwise/internal/repository/memory"
	postgresrepo "github.com/ivankosh/seatwise/internal/repository/postgres"
	redisrepo "github.com/ivankosh/seatwise/internal/repository/redis"
	"github.com/ivankosh/seatwise/internal/service"
	"github.com/ivankosh/seatwise/internal/service/reservation"
	"github.com/ivankosh/seatwise/internal/service/seatlock"
	httpgin "github.com/ivankosh/seatwise/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	reclaimer  *reclaimer.Reclaimer
	publisher  *queue.Publisher
	cache      *redisrepo.Cache
	pubsub     *redisx.SeatsPubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	stores, err := newStores(cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	cache := redisrepo.New(rdb)
	pubsub := redisx.NewSeatsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "lock", 30, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	var publisher *queue.Publisher
	if cfg.Queue.AMQPURL != "" {
		publisher = queue.NewPublisher(cfg.Queue.AMQPURL, logger)
	}

	// Initialize services
	services := service.NewServices(stores, cache, pubsub, limiter, publisher, logger, service.Config{
		SeatLock: seatlock.Config{
			LockTTL: cfg.Core.LockTTL,
		},
		Reservation: reservation.Config{
			UnitPriceCents: cfg.Core.UnitPriceCents,
			ReservationTTL: cfg.Core.ReservationTTL,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger, cfg.Auth.JWTSecret)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		reclaimer: reclaimer.New(stores.Seats, cfg.Core.SweepInterval, logger),
		publisher: publisher,
		cache:     cache,
		pubsub:    pubsub,
	}, nil
}

func newStores(cfg *config.Config) (service.Stores, error) {
	if cfg.Store.Driver == "memory" {
		m := memory.NewStore()
		return service.Stores{Seats: m, Reservations: m, Events: m}, nil
	}

	pool, err := postgres.New(context.Background(), postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Name:     cfg.Postgres.Name,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		return service.Stores{}, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	store := postgresrepo.NewStore(pool)

	if err := store.EnsureSchema(context.Background()); err != nil {
		return service.Stores{}, fmt.Errorf("failed to apply schema: %w", err)
	}

	return service.Stores{
		Seats:        store.Seats(),
		Reservations: store.Reservations(),
		Events:       store.Events(),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Background sweep of expired holds
	g.Go(func() error {
		if err := a.reclaimer.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Drop cached projections when another instance announces a seat change,
	// closing the window where a stale snapshot gets re-cached here while the
	// writer was invalidating.
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID int64) {
			if err := a.cache.InvalidateEvent(ctx, eventID); err != nil {
				a.logger.Error("failed to invalidate event cache", "event_id", eventID, "error", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")

		if a.publisher != nil {
			_ = a.publisher.Close()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
