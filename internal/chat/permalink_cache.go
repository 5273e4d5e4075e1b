package chat

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cachingClient decorates a Client with a redis-backed permalink cache.
// Permalinks are immutable once issued, so a cache miss is the only case that
// reaches the platform. All other calls pass through.
type cachingClient struct {
	Client
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingClient wraps inner with permalink caching. With a nil redis
// client the inner client is returned unchanged.
func NewCachingClient(inner Client, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) Client {
	if rdb == nil {
		return inner
	}
	return &cachingClient{Client: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *cachingClient) GetPermalink(ctx context.Context, channelID, ts string) (string, error) {
	key := "permalink:" + channelID + ":" + ts

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && err != redis.Nil {
		c.logger.Warn("permalink cache read failed", zap.Error(err))
	}

	link, err := c.Client.GetPermalink(ctx, channelID, ts)
	if err != nil {
		return "", err
	}
	if setErr := c.rdb.Set(ctx, key, link, c.ttl).Err(); setErr != nil {
		c.logger.Warn("permalink cache write failed", zap.Error(setErr))
	}
	return link, nil
}
