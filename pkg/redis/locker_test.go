package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hostkit/pkg/redis"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLocker(t *testing.T) {
	t.Parallel()

	t.Run("exclusive until released", func(t *testing.T) {
		t.Parallel()
		mr, client := setupRedis(t)
		locker := redis.NewLocker(client, redis.WithPrefix("test:"))
		ctx := context.Background()

		release, ok, err := locker.TryAcquire(ctx, "user-1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, mr.Exists("test:user-1"))

		_, ok, err = locker.TryAcquire(ctx, "user-1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = locker.TryAcquire(ctx, "user-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		release()
		release()
		assert.False(t, mr.Exists("test:user-1"))
	})

	t.Run("expired lease is not released by old owner", func(t *testing.T) {
		t.Parallel()
		mr, client := setupRedis(t)
		locker := redis.NewLocker(client)
		ctx := context.Background()

		release, ok, err := locker.TryAcquire(ctx, "k", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(2 * time.Second)

		_, ok, err = locker.TryAcquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		release()
		assert.True(t, mr.Exists("hostkit:lock:k"))
	})

	t.Run("acquire waits for release", func(t *testing.T) {
		t.Parallel()
		_, client := setupRedis(t)
		locker := redis.NewLocker(client, redis.WithRetryInterval(5*time.Millisecond))
		ctx := context.Background()

		var inside atomic.Int32
		var maxInside atomic.Int32
		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := locker.Acquire(ctx, "shared", time.Minute)
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				release()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})

	t.Run("acquire honours context", func(t *testing.T) {
		t.Parallel()
		_, client := setupRedis(t)
		locker := redis.NewLocker(client, redis.WithRetryInterval(5*time.Millisecond))

		_, ok, err := locker.TryAcquire(context.Background(), "busy", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err = locker.Acquire(ctx, "busy", time.Minute)
		assert.ErrorIs(t, err, redis.ErrLockTimeout)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		t.Parallel()
		mr, client := setupRedis(t)
		locker := redis.NewLocker(client)
		mr.Close()

		_, err := locker.Acquire(context.Background(), "k", time.Second)
		assert.Error(t, err)
	})
}

func TestConnect(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := redis.Connect(context.Background(), redis.Config{
		ConnectionURL:  "redis://" + mr.Addr() + "/0",
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.NoError(t, redis.Healthcheck(client)(context.Background()))

	_, err = redis.Connect(context.Background(), redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(context.Background(), redis.Config{ConnectionURL: "mysql://nope"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}
