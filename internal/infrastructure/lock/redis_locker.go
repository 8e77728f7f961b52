// Package lock serializes work on one order across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockNotObtained is returned when another process holds the order lock
// for longer than the retry budget
var ErrLockNotObtained = shared.NewDomainError(shared.CodeConcurrency, "order is being reconciled by another process")

// RedisOrderLocker holds a Redis lock per order while fn runs
type RedisOrderLocker struct {
	locker  *redislock.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// NewRedisOrderLocker creates a locker over client
func NewRedisOrderLocker(client *redis.Client, cfg config.LockConfig, logger *zap.Logger) *RedisOrderLocker {
	return &RedisOrderLocker{
		locker:  redislock.New(client),
		ttl:     cfg.TTL,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		logger:  logger,
	}
}

func orderLockKey(orderID uuid.UUID) string {
	return fmt.Sprintf("lock:order:%s", orderID)
}

// WithOrderLock runs fn while holding the order's lock
func (l *RedisOrderLocker) WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	key := orderLockKey(orderID)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	}

	lock, err := l.locker.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.logger.Warn("Could not obtain order lock", zap.String("key", key))
		return ErrLockNotObtained
	}
	if err != nil {
		return fmt.Errorf("obtain order lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release order lock", zap.String("key", key), zap.Error(releaseErr))
		}
	}()

	return fn(ctx)
}

// NoopOrderLocker runs fn directly; used when locking is disabled
type NoopOrderLocker struct{}

// WithOrderLock runs fn without locking
func (NoopOrderLocker) WithOrderLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
