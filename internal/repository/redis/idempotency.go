package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const idemNS = "seatwise:v1:idem"

func KeyIdemReserve(eventID int64, idemKey string) string {
	return fmt.Sprintf("%s:reserve:%d:%s", idemNS, eventID, idemKey)
}

// A key holds either an in-flight marker or a stored response; the prefix
// tells them apart.
const (
	idemPending = "LOCK"
	idemResult  = "RES:"
)

// IdempotencyStore replays reservation responses for retried requests that
// carry the same Idempotency-Key. The first attempt claims the key; its
// serialized response is stored and returned verbatim to later retries.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// AcquireLock claims the key for the duration of one attempt. False means
// another attempt with this key is in flight or already finished.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, idemPending, lockTTL).Result()
}

// SaveResult replaces the in-flight marker with the response to replay.
func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	return s.rdb.Set(ctx, key, idemResult+jsonPayload, s.ttl).Err()
}

// GetResult returns the stored response, if the attempt under this key has
// finished. A pending marker reads as no result.
func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if payload, ok := strings.CutPrefix(v, idemResult); ok {
		return payload, true, nil
	}

	return "", false, nil
}

// Release drops the key so a failed attempt does not block retries.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
