package plans

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "plan_active:"

// Checker is the lookup wrapped by CachedChecker.
type Checker interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// CachedChecker caches plan activation answers in Redis. Redis failures fall
// through to the inner checker; inner failures are never cached.
type CachedChecker struct {
	inner Checker
	rdb   redis.Cmdable
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedChecker wraps inner with a Redis cache of the given TTL.
func NewCachedChecker(inner Checker, rdb redis.Cmdable, ttl time.Duration, log zerolog.Logger) *CachedChecker {
	return &CachedChecker{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

// IsActive implements reminder.PlanChecker.
func (c *CachedChecker) IsActive(ctx context.Context, userID string) (bool, error) {
	key := cacheKeyPrefix + userID

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("recipient", userID).Msg("Plan cache read failed")
	}

	active, err := c.inner.IsActive(ctx, userID)
	if err != nil {
		return false, err
	}

	val = "0"
	if active {
		val = "1"
	}
	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("recipient", userID).Msg("Plan cache write failed")
	}
	return active, nil
}
