package quota_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/quota"
)

func newRedisStore(t *testing.T) *quota.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return quota.NewRedisStore(client)
}

func TestRedisStore_IncrementUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newRedisStore(t)
	userID := uuid.New()
	day := entitlement.Day("2025-06-01")

	t.Run("increments until limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			count, granted, err := store.IncrementUsage(ctx, userID, day, 3)
			require.NoError(t, err)
			assert.True(t, granted)
			assert.Equal(t, i, count)
		}

		count, granted, err := store.IncrementUsage(ctx, userID, day, 3)
		require.NoError(t, err)
		assert.False(t, granted)
		assert.EqualValues(t, 3, count, "denied call must not mutate the counter")
	})

	t.Run("separate days are separate counters", func(t *testing.T) {
		count, granted, err := store.IncrementUsage(ctx, userID, entitlement.Day("2025-06-02"), 1)
		require.NoError(t, err)
		assert.True(t, granted)
		assert.EqualValues(t, 1, count)
	})

	t.Run("separate users are separate counters", func(t *testing.T) {
		count, granted, err := store.IncrementUsage(ctx, uuid.New(), day, 1)
		require.NoError(t, err)
		assert.True(t, granted)
		assert.EqualValues(t, 1, count)
	})

	t.Run("zero limit always denied", func(t *testing.T) {
		_, granted, err := store.IncrementUsage(ctx, uuid.New(), day, 0)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("nil user rejected", func(t *testing.T) {
		_, _, err := store.IncrementUsage(ctx, uuid.Nil, day, 1)
		require.ErrorIs(t, err, entitlement.ErrUserIDRequired)
	})
}

func TestRedisStore_IncrementUsage_Concurrent(t *testing.T) {
	t.Parallel()

	const (
		workers = 40
		limit   = 7
	)

	ctx := context.Background()
	store := newRedisStore(t)
	userID := uuid.New()
	day := entitlement.Day("2025-06-01")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		maxSeen int64
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, ok, err := store.IncrementUsage(ctx, userID, day, limit)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				granted++
			}
			if count > maxSeen {
				maxSeen = count
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, granted, "exactly min(N, K) grants")
	assert.EqualValues(t, limit, maxSeen, "count never exceeds the limit")
}

func TestGate_WithRedisStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := quota.NewGate(newRedisStore(t))
	userID := uuid.New()
	day := entitlement.Day("2025-06-01")

	d := gate.CheckAndIncrement(ctx, userID, entitlement.TierFreemium, day)
	assert.True(t, d.Allowed)
	assert.EqualValues(t, 0, d.Remaining)

	d = gate.CheckAndIncrement(ctx, userID, entitlement.TierFreemium, day)
	assert.False(t, d.Allowed)
	assert.Equal(t, quota.ReasonQuotaExceeded, d.Reason)
}
