package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedLookup is a read-through Redis cache in front of another Lookup.
// Cache failures fall back to the source.
type CachedLookup struct {
	source     Lookup
	client     *redis.Client
	expiration time.Duration
	logger     *zap.Logger
}

// NewCachedLookup wraps source with a Redis cache
func NewCachedLookup(source Lookup, client *redis.Client, expiration time.Duration, logger *zap.Logger) *CachedLookup {
	return &CachedLookup{
		source:     source,
		client:     client,
		expiration: expiration,
		logger:     logger,
	}
}

func (c *CachedLookup) key(symbol string) string {
	return "security:" + symbol
}

// Security returns the cached profile or loads and caches it
func (c *CachedLookup) Security(ctx context.Context, symbol string) (*SecurityProfile, error) {
	data, err := c.client.Get(ctx, c.key(symbol)).Bytes()
	switch {
	case err == nil:
		var p SecurityProfile
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		c.logger.Warn("discarding undecodable cached security", zap.String("symbol", symbol))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("security cache read failed", zap.String("symbol", symbol), zap.Error(err))
	}

	p, err := c.source.Security(ctx, symbol)
	if err != nil || p == nil {
		return p, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, c.key(symbol), data, c.expiration).Err(); err != nil {
			c.logger.Warn("security cache write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return p, nil
}

// Invalidate drops symbol from the cache
func (c *CachedLookup) Invalidate(ctx context.Context, symbol string) error {
	return c.client.Del(ctx, c.key(symbol)).Err()
}
