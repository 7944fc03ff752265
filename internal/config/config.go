package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Queue    QueueConfig
	Core     CoreConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// StoreConfig selects the persistence substrate. "postgres" is the
// production driver; "memory" runs the same store contract on process
// memory for local development.
type StoreConfig struct {
	Driver string
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

// QueueConfig configures the optional AMQP broker for reservation lifecycle
// events. An empty URL disables publishing.
type QueueConfig struct {
	AMQPURL string
}

// CoreConfig carries the reservation-core tunables.
type CoreConfig struct {
	LockTTL        time.Duration
	ReservationTTL time.Duration
	SweepInterval  time.Duration
	UnitPriceCents int
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := envDefault("SERVER_HOST", "localhost")

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	storeCfg := StoreConfig{
		Driver: envDefault("STORE_DRIVER", "postgres"),
	}

	if storeCfg.Driver != "postgres" && storeCfg.Driver != "memory" {
		return nil, fmt.Errorf("%s: invalid STORE_DRIVER %q", op, storeCfg.Driver)
	}

	var postgresCfg PostgresConfig

	if storeCfg.Driver == "postgres" {
		postgresPort, err := envInt("POSTGRES_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		postgresUser := os.Getenv("POSTGRES_USER")
		if postgresUser == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
		}

		postgresPassword := os.Getenv("POSTGRES_PASSWORD")
		if postgresPassword == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
		}

		postgresDB := os.Getenv("POSTGRES_DB")
		if postgresDB == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
		}

		postgresCfg = PostgresConfig{
			User:     postgresUser,
			Password: postgresPassword,
			Name:     postgresDB,
			Host:     envDefault("POSTGRES_HOST", "localhost"),
			Port:     postgresPort,
			SSLMode:  envDefault("POSTGRES_SSLMODE", "disable"),
		}
	}

	redisCfg := RedisConfig{
		Addr:     envDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	lockTTL, err := envSeconds("LOCK_TTL_SECONDS", 300)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reservationTTL, err := envSeconds("RESERVATION_TTL_SECONDS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sweepInterval, err := envSeconds("SWEEP_INTERVAL_SECONDS", 30)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	unitPrice, err := envInt("UNIT_PRICE_CENTS", 10000)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if unitPrice <= 0 {
		return nil, fmt.Errorf("%s: UNIT_PRICE_CENTS must be positive", op)
	}

	return &Config{
		Server:   serverCfg,
		Store:    storeCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Auth:     AuthConfig{JWTSecret: jwtSecret},
		Queue:    QueueConfig{AMQPURL: os.Getenv("AMQP_URL")},
		Core: CoreConfig{
			LockTTL:        lockTTL,
			ReservationTTL: reservationTTL,
			SweepInterval:  sweepInterval,
			UnitPriceCents: unitPrice,
		},
	}, nil
}

func envDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return v, nil
}

func envSeconds(name string, def int) (time.Duration, error) {
	v, err := envInt(name, def)
	if err != nil {
		return 0, err
	}

	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}

	return time.Duration(v) * time.Second, nil
}
