// Package embedding_cache memoizes embedding vectors in Redis, keyed by a
// content hash of the (entity, text) pair.
package embedding_cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
	"github.com/Patelhetu-177/AvatarAI/pkg/metrics"
)

// DefaultTTL is how long a cached embedding stays valid.
const DefaultTTL = time.Hour

// Embedder computes an embedding vector for a piece of text. It is assumed
// deterministic for identical text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Cache is a content-addressed embedding cache. The cache is a performance
// optimization, never a correctness dependency: any cache failure degrades
// to direct computation.
type Cache struct {
	client   redis.UniversalClient
	embedder Embedder
	ttl      time.Duration
	log      logger.Logger
	metrics  *metrics.Metrics
	group    singleflight.Group
}

// Config holds configuration for the embedding cache.
type Config struct {
	Client   redis.UniversalClient
	Embedder Embedder
	Logger   logger.Logger

	// TTL for cached vectors. Defaults to DefaultTTL.
	TTL time.Duration
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// New creates a new embedding cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.Client == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Embedder == nil {
		panic("embedder cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	return &Cache{
		client:   cfg.Client,
		embedder: cfg.Embedder,
		ttl:      cfg.TTL,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// CacheKey derives the deterministic Redis key for an (entity, text) pair.
func CacheKey(entityFileID, text string) string {
	sum := sha256.Sum256([]byte(entityFileID + ":" + text))
	return "embed:" + hex.EncodeToString(sum[:])
}

// Embed returns the embedding vector for text, serving from the cache when a
// valid entry exists and computing (then caching) otherwise. Concurrent
// calls for the same pair are coalesced into one computation.
func (c *Cache) Embed(ctx context.Context, entityFileID, text string) ([]float32, error) {
	key := CacheKey(entityFileID, text)

	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.embed(ctx, key, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

func (c *Cache) embed(ctx context.Context, key, text string) ([]float32, error) {
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		vector, ok := c.decode(ctx, key, cached)
		if ok {
			if c.metrics != nil {
				c.metrics.EmbeddingCacheHits.Inc()
			}
			return vector, nil
		}
		// Corrupt entry was purged; recompute below.
	case errors.Is(err, redis.Nil):
		// Plain miss; compute below.
	default:
		// Cache unreachable. Compute directly, with one retry before
		// giving up.
		c.log.Warn("Embedding cache read failed, computing directly",
			logger.ErrorField(err))
		return c.embedDirect(ctx, text)
	}

	if c.metrics != nil {
		c.metrics.EmbeddingCacheMisses.Inc()
	}

	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to compute embedding: %w", err)
	}

	c.store(ctx, key, vector)
	return vector, nil
}

// decode validates a cached payload as a non-empty numeric vector. Anything
// else is treated as a miss and the stale entry is purged, never returned as
// data.
func (c *Cache) decode(ctx context.Context, key, cached string) ([]float32, bool) {
	var vector []float32
	if err := json.Unmarshal([]byte(cached), &vector); err == nil && len(vector) > 0 {
		return vector, true
	}

	c.log.Warn("Purging malformed cached embedding", logger.StringField("key", key))
	if c.metrics != nil {
		c.metrics.EmbeddingCacheEvictions.Inc()
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("Failed to delete malformed cache entry", logger.ErrorField(err))
	}
	return nil, false
}

// store writes the freshly computed vector back to the cache. A write
// failure is logged and swallowed; the caller still gets the vector.
func (c *Cache) store(ctx context.Context, key string, vector []float32) {
	payload, err := json.Marshal(vector)
	if err != nil {
		c.log.Warn("Failed to encode embedding for cache", logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("Failed to cache embedding", logger.ErrorField(err))
	}
}

// embedDirect computes the embedding without touching the cache, retrying
// once on provider failure.
func (c *Cache) embedDirect(ctx context.Context, text string) ([]float32, error) {
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err == nil {
		return vector, nil
	}

	c.log.Warn("Embedding provider failed, retrying once", logger.ErrorField(err))
	vector, err = c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to compute embedding after retry: %w", err)
	}
	return vector, nil
}
