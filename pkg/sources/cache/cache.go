// Package cache decorates a quote source with a Redis read-through cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/metrics"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

const keyPrefix = "quotes"

// CachedSource serves repeated searches for the same request from Redis.
// Only successful searches are cached, empty results included. Redis failures
// are logged and the wrapped source is queried directly.
type CachedSource struct {
	sources.Source

	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

var _ sources.Source = (*CachedSource)(nil)

// Wrap returns src decorated with a cache entry lifetime of ttl.
func Wrap(src sources.Source, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &CachedSource{
		Source: src,
		client: client,
		ttl:    ttl,
		logger: logger.With("source", src.Name(), "component", "cache"),
	}
}

// Key returns the Redis key used for req.
func (c *CachedSource) Key(req sources.SearchRequest) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, c.Name(), req.Key())
}

// Search returns cached quotes when present and fresh, otherwise delegates.
func (c *CachedSource) Search(ctx context.Context, req sources.SearchRequest) ([]sources.Quote, error) {
	key := c.Key(req)

	if quotes, ok := c.lookup(ctx, key); ok {
		return quotes, nil
	}

	quotes, err := c.Source.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, quotes)
	return quotes, nil
}

func (c *CachedSource) lookup(ctx context.Context, key string) ([]sources.Quote, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheLookup(c.Name(), "miss")
		} else {
			metrics.RecordCacheLookup(c.Name(), "error")
			c.logger.Warn("Quote cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}

	var quotes []sources.Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		metrics.RecordCacheLookup(c.Name(), "error")
		c.logger.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}

	metrics.RecordCacheLookup(c.Name(), "hit")
	c.logger.Debug("Quote cache hit", "key", key, "quotes", len(quotes))
	return quotes, true
}

func (c *CachedSource) store(ctx context.Context, key string, quotes []sources.Quote) {
	if quotes == nil {
		quotes = []sources.Quote{}
	}
	data, err := json.Marshal(quotes)
	if err != nil {
		c.logger.Warn("Failed to encode quotes for cache", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write quote cache", "key", key, "error", err)
	}
}

// NewClient opens a Redis client and checks connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
