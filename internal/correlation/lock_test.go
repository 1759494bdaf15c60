package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	release, err := locker.Acquire(ctx, "ds-1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "ds-1")
	assert.ErrorIs(t, err, ErrRunInProgress)

	other, err := locker.Acquire(ctx, "ds-2")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := locker.Acquire(ctx, "ds-1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		locker := NewRedisLocker(client, time.Minute)

		release, err := locker.Acquire(ctx, "ds-1")
		require.NoError(t, err)
		assert.True(t, mr.Exists("correlate:lock:ds-1"))
		assert.Equal(t, time.Minute, mr.TTL("correlate:lock:ds-1"))

		_, err = locker.Acquire(ctx, "ds-1")
		assert.ErrorIs(t, err, ErrRunInProgress)

		release()
		assert.False(t, mr.Exists("correlate:lock:ds-1"))

		release2, err := locker.Acquire(ctx, "ds-1")
		require.NoError(t, err)
		release2()
	})

	t.Run("expired lock can be retaken", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		locker := NewRedisLocker(client, time.Minute)

		stale, err := locker.Acquire(ctx, "ds-1")
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		fresh, err := locker.Acquire(ctx, "ds-1")
		require.NoError(t, err)

		// the stale holder must not drop the new holder's lock
		stale()
		assert.True(t, mr.Exists("correlate:lock:ds-1"))

		fresh()
		assert.False(t, mr.Exists("correlate:lock:ds-1"))
	})

	t.Run("default ttl", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		locker := NewRedisLocker(client, 0)

		release, err := locker.Acquire(ctx, "ds-1")
		require.NoError(t, err)
		defer release()
		assert.Equal(t, 15*time.Minute, mr.TTL("correlate:lock:ds-1"))
	})

	t.Run("redis unavailable", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		mr.Close()

		_, err := NewRedisLocker(client, time.Minute).Acquire(ctx, "ds-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRunInProgress)
	})
}
