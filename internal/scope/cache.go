package scope

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedAccessReader fronts an AccessReader with a short-lived Redis
// cache. Cache failures degrade to the source; they never deny access
// on their own.
type CachedAccessReader struct {
	source AccessReader
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedAccessReader constructs the cache layer.
func NewCachedAccessReader(source AccessReader, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedAccessReader {
	return &CachedAccessReader{source: source, client: client, ttl: ttl, logger: logger}
}

func accessCacheKey(userID uuid.UUID) string {
	return "scope:access:" + userID.String()
}

// BasesForUser returns the cached grant set, falling through to the
// source on miss.
func (c *CachedAccessReader) BasesForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	key := accessCacheKey(userID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []uuid.UUID
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.Warn("scope cache read", slog.Any("error", err))
	}

	baseIDs, err := c.source.BasesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(baseIDs); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("scope cache write", slog.Any("error", err))
		}
	}
	return baseIDs, nil
}

// Invalidate drops the cached grants for a user after admin tooling
// changes the mapping.
func (c *CachedAccessReader) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, accessCacheKey(userID)).Err()
}
