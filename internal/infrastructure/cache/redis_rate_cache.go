package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	rateKeyPrefix        = "fx:rate"
	defaultRateTTL       = 10 * time.Minute
	defaultMissTTL       = time.Minute
	defaultScanBatchSize = 100
)

// cachedRate is the stored form; Found=false records a miss
type cachedRate struct {
	Found bool                    `json:"found"`
	Rate  *finance.ConversionRate `json:"rate,omitempty"`
}

// RedisRateCache caches conversion rate lookups in front of another repository.
// Redis failures fall through to the wrapped repository.
type RedisRateCache struct {
	next    finance.ConversionRateRepository
	client  *redis.Client
	ttl     time.Duration
	missTTL time.Duration
	logger  *zap.Logger
}

// RedisRateCacheOption configures a RedisRateCache
type RedisRateCacheOption func(*RedisRateCache)

// WithRateTTL sets how long found rates stay cached
func WithRateTTL(ttl time.Duration) RedisRateCacheOption {
	return func(c *RedisRateCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMissTTL sets how long a missing rate is remembered
func WithMissTTL(ttl time.Duration) RedisRateCacheOption {
	return func(c *RedisRateCache) {
		if ttl > 0 {
			c.missTTL = ttl
		}
	}
}

// WithRateCacheLogger sets the logger for the cache
func WithRateCacheLogger(logger *zap.Logger) RedisRateCacheOption {
	return func(c *RedisRateCache) {
		c.logger = logger
	}
}

// NewRedisRateCache wraps next. The caller keeps ownership of client.
func NewRedisRateCache(next finance.ConversionRateRepository, client *redis.Client, opts ...RedisRateCacheOption) *RedisRateCache {
	c := &RedisRateCache{
		next:    next,
		client:  client,
		ttl:     defaultRateTTL,
		missTTL: defaultMissTTL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rateCacheKey keys a lookup by everything that selects a rate; the date is truncated to the day
func rateCacheKey(q finance.ConversionQuery) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s",
		rateKeyPrefix, q.ClientID, q.OrganizationID, q.From, q.To, q.ConversionType, q.AsOf.UTC().Format(time.DateOnly))
}

// clientPairPattern matches every cached lookup of a client and currency pair
func clientPairPattern(clientID uuid.UUID, from, to string) string {
	return fmt.Sprintf("%s:%s:*:%s:%s:*", rateKeyPrefix, clientID, from, to)
}

// FindRate returns the cached answer or asks the wrapped repository and caches it
func (c *RedisRateCache) FindRate(ctx context.Context, q finance.ConversionQuery) (*finance.ConversionRate, error) {
	key := rateCacheKey(q)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedRate
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			c.logger.Debug("Rate cache hit", zap.String("key", key), zap.Bool("found", cached.Found))
			return cached.Rate, nil
		}
		c.logger.Warn("Discarding undecodable cached rate", zap.String("key", key))
	case errors.Is(err, redis.Nil):
		c.logger.Debug("Rate cache miss", zap.String("key", key))
	default:
		c.logger.Warn("Rate cache unavailable, reading through", zap.String("key", key), zap.Error(err))
	}

	rate, err := c.next.FindRate(ctx, q)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, rate)
	return rate, nil
}

func (c *RedisRateCache) store(ctx context.Context, key string, rate *finance.ConversionRate) {
	entry := cachedRate{Found: rate != nil, Rate: rate}
	ttl := c.ttl
	if rate == nil {
		ttl = c.missTTL
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("Failed to encode rate for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache rate", zap.String("key", key), zap.Error(err))
	}
}

// Save stores the rate and drops cached lookups for its client and currency pair.
// A system rate (nil client) invalidates the pair for every client.
func (c *RedisRateCache) Save(ctx context.Context, rate *finance.ConversionRate) error {
	if err := c.next.Save(ctx, rate); err != nil {
		return err
	}
	pattern := clientPairPattern(rate.ClientID, rate.From.String(), rate.To.String())
	if rate.ClientID == uuid.Nil {
		pattern = fmt.Sprintf("%s:*:*:%s:%s:*", rateKeyPrefix, rate.From, rate.To)
	}
	if err := c.invalidate(ctx, pattern); err != nil {
		c.logger.Warn("Failed to invalidate cached rates", zap.String("pattern", pattern), zap.Error(err))
	}
	return nil
}

func (c *RedisRateCache) invalidate(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, defaultScanBatchSize).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ensure RedisRateCache implements ConversionRateRepository
var _ finance.ConversionRateRepository = (*RedisRateCache)(nil)
