package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore shares the cooldown through Redis so every bot process using
// the same token observes a 429 received by any of them. Keys expire with
// the cooldown, so an idle Redis holds no stale state.
type RedisStore struct {
	redis     *redis.Client
	namespace string
	logger    zerolog.Logger
}

// NewRedisStore creates a Redis-backed store. namespace separates tokens
// sharing one Redis database; it must not be the token itself.
func NewRedisStore(redisClient *redis.Client, namespace string, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if namespace == "" {
		namespace = "default"
	}
	return &RedisStore{
		redis:     redisClient,
		namespace: namespace,
		logger:    logger,
	}
}

func (s *RedisStore) key(name string) string {
	return RedisKeyPrefix + s.namespace + ":" + name
}

// Get retrieves the cooldown from Redis.
// Returns the zero Cooldown if no data exists.
func (s *RedisStore) Get(ctx context.Context) (Cooldown, error) {
	blockedUntil, err := s.redis.Get(ctx, s.key(RedisKeyBlockedUntil)).Int64()
	if errors.Is(err, redis.Nil) {
		return Cooldown{}, nil
	}
	if err != nil {
		return Cooldown{}, fmt.Errorf("get blocked until: %w", err)
	}

	state := Cooldown{BlockedUntil: time.UnixMilli(blockedUntil)}

	lastUpdate, err := s.redis.Get(ctx, s.key(RedisKeyLastUpdate)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Cooldown{}, fmt.Errorf("get last update: %w", err)
	}
	if len(lastUpdate) > 0 {
		if err := json.Unmarshal(lastUpdate, &state.LastUpdate); err != nil {
			return Cooldown{}, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// Block extends the shared cooldown to until.
//
// The read-compare-write is not atomic; two sessions racing may leave the
// shorter deadline in place, which costs at most one extra 429.
func (s *RedisStore) Block(ctx context.Context, until time.Time) error {
	current, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if !current.Extends(until) {
		return nil
	}

	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	now := time.Now()
	lastUpdateJSON, err := json.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := s.redis.Pipeline()
	pipe.Set(ctx, s.key(RedisKeyBlockedUntil), until.UnixMilli(), ttl)
	pipe.Set(ctx, s.key(RedisKeyLastUpdate), lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cooldown in redis: %w", err)
	}

	sparkRateLimitCooldownsTotal.WithLabelValues("redis").Inc()
	sparkRateLimitBlockedUntil.WithLabelValues("redis").Set(float64(until.Unix()))

	s.logger.Info().
		Str("namespace", s.namespace).
		Time("blocked_until", until).
		Dur("ttl", ttl).
		Msg("Rate limit cooldown shared")

	return nil
}
