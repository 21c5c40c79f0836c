package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"circle/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	userProfileKeyPrefix = "profile:%s"
	blacklistKeyPrefix   = "blacklist:%s"
)

// ProfileTTL bounds how stale a cached public profile may be.
const ProfileTTL = 5 * time.Minute

// ProfileKey is the cache key of a public profile looked up by username.
func ProfileKey(username string) string {
	return fmt.Sprintf(userProfileKeyPrefix, username)
}

// BlacklistKey is the key holding a revoked token's jti.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(blacklistKeyPrefix, jti)
}

// Aside reads key from Redis and falls back to load on a miss, storing the result for ttl.
// Redis failures never fail the call; the loader result is returned instead.
func Aside[T any](ctx context.Context, rdb *redis.Client, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if rdb == nil {
		return load(ctx)
	}

	raw, err := rdb.Get(ctx, key).Bytes()
	if err == nil {
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		middleware.Logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if payload, jsonErr := json.Marshal(value); jsonErr == nil {
		if setErr := rdb.Set(ctx, key, payload, ttl).Err(); setErr != nil {
			middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", setErr)
		}
	}
	return value, nil
}

// Invalidate deletes key. A nil client is a no-op.
func Invalidate(ctx context.Context, rdb *redis.Client, key string) {
	if rdb == nil {
		return
	}
	if err := rdb.Del(ctx, key).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidate failed", "key", key, "error", err)
	}
}
