package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/face-identify/internal/logging"
	"github.com/example/face-identify/internal/pipeline"
)

// Cache abstracts the Redis operations used by the use case to make testing easier.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value to Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a cached value from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// CachedNames serves person names from the cache and falls back to lookup.
// Cache failures degrade to a direct lookup.
type CachedNames struct {
	cache          Cache
	lookup         pipeline.NameResolver
	ttl            time.Duration
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var _ pipeline.NameResolver = (*CachedNames)(nil)

// NewCachedNames wraps lookup with a cache whose entries live for ttl.
func NewCachedNames(cache Cache, lookup pipeline.NameResolver, ttl time.Duration, logger *zap.Logger) *CachedNames {
	return &CachedNames{
		cache:          cache,
		lookup:         lookup,
		ttl:            ttl,
		logger:         logger.Named("person_cache"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

func personCacheKey(groupID, personID string) string {
	return fmt.Sprintf("person:%s:%s", groupID, personID)
}

// PersonName implements pipeline.NameResolver.
func (c *CachedNames) PersonName(ctx context.Context, groupID, personID string) (string, error) {
	key := personCacheKey(groupID, personID)
	opLogger := logging.WithOperation(c.logger, "cache.person_name", "").With(zap.String("key", key))

	name, err := c.withRedisGet(ctx, "cache.get.person_name", key)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	name, err = c.lookup.PersonName(ctx, groupID, personID)
	if err != nil {
		return "", err
	}

	if err := c.withRedisRetry(ctx, "cache.set.person_name", func() error {
		return c.cache.Set(ctx, key, name, c.ttl)
	}); err != nil {
		opLogger.Warn("failed to cache person name", zap.Error(err))
	}
	return name, nil
}

func (c *CachedNames) withRedisRetry(ctx context.Context, operation string, fn func() error) error {
	attempts := c.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := c.initialBackoff
	opLogger := logging.WithOperation(c.logger, operation, "")
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, "", ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= c.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if errors.Is(err, redis.Nil) {
			return logging.NewOperationError(operation, "", err)
		}
		if !logging.IsTransient(err) || attempt == attempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, "", err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, "", err)
}

func (c *CachedNames) withRedisGet(ctx context.Context, operation, cacheKey string) (string, error) {
	var result string
	err := c.withRedisRetry(ctx, operation, func() error {
		value, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
