package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/leasebook/internal/config"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNilLockerReportsNotConfigured(t *testing.T) {
	locker := NewLocker(nil)

	_, ok, err := locker.TryLock(context.Background(), "k", time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, locker.Release(context.Background(), "k", "token"))
}

func TestManualTriggerLimiterAllowsWithoutRedis(t *testing.T) {
	limiter := NewManualTriggerLimiter(config.Config{}, NewTokenBucket(nil))
	require.Nil(t, limiter)

	result, err := limiter.AllowOwner(context.Background(), "1001")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(0.5, 5))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}

func TestLockerIsSingleHolder(t *testing.T) {
	client, mr := newTestRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "sweep", "not-the-holder"))
	assert.True(t, mr.Exists("sweep"))

	require.NoError(t, locker.Release(ctx, "sweep", token))
	assert.False(t, mr.Exists("sweep"))
}

func TestManualTriggerLimiterDrainsPerOwner(t *testing.T) {
	client, _ := newTestRedis(t)
	cfg := config.Config{Redis: config.RedisConfig{ManualTriggerRate: 0.5, ManualTriggerBurst: 2}}
	limiter := NewManualTriggerLimiter(cfg, NewTokenBucket(client))
	require.NotNil(t, limiter)
	ctx := context.Background()

	for range 2 {
		result, err := limiter.AllowOwner(ctx, "1001")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.AllowOwner(ctx, "1001")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, result.RetryAfter, 2*time.Second)

	result, err = limiter.AllowOwner(ctx, "2002")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
