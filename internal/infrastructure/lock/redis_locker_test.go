package lock

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrderLockKey(t *testing.T) {
	id := uuid.MustParse("5d4c3b2a-1f0e-4d9c-8b7a-6f5e4d3c2b1a")
	assert.Equal(t, "lock:order:5d4c3b2a-1f0e-4d9c-8b7a-6f5e4d3c2b1a", orderLockKey(id))
}

func TestNoopOrderLocker(t *testing.T) {
	called := false
	err := NoopOrderLocker{}.WithOrderLock(context.Background(), uuid.New(), func(context.Context) error {
		called = true
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, called)
}

func TestRedisOrderLocker_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	locker := NewRedisOrderLocker(client, config.LockConfig{TTL: time.Second}, zap.NewNop())
	called := false
	err := locker.WithOrderLock(context.Background(), uuid.New(), func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

// requires a running Redis; set REDIS_ADDR to enable
func TestRedisOrderLocker_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	locker := NewRedisOrderLocker(client, config.LockConfig{TTL: 5 * time.Second, Retries: 0, Backoff: 10 * time.Millisecond}, zap.NewNop())
	orderID := uuid.New()

	t.Run("second holder is turned away", func(t *testing.T) {
		err := locker.WithOrderLock(context.Background(), orderID, func(ctx context.Context) error {
			return locker.WithOrderLock(ctx, orderID, func(context.Context) error { return nil })
		})
		assert.ErrorIs(t, err, ErrLockNotObtained)
	})

	t.Run("lock is released after fn", func(t *testing.T) {
		var runs atomic.Int32
		for range 2 {
			require.NoError(t, locker.WithOrderLock(context.Background(), orderID, func(context.Context) error {
				runs.Add(1)
				return nil
			}))
		}
		assert.Equal(t, int32(2), runs.Load())
	})
}
