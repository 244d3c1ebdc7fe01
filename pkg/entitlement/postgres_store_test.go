package entitlement_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/pg"
)

// newTestPool connects to the database named by TEST_DATABASE_URL and brings
// the schema up to date. The suite is skipped when the variable is unset so
// it stays runnable without infrastructure.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	cfg := pg.Config{
		MigrationsPath:  "migrations",
		MigrationsTable: "schema_migrations",
	}
	require.NoError(t, pg.Migrate(ctx, pool, cfg, slog.Default()))

	return pool
}

func TestPostgresStore_Get_Missing(t *testing.T) {
	t.Parallel()

	store := entitlement.NewPostgresStore(newTestPool(t))

	_, err := store.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, entitlement.ErrRecordNotFound)
}

func TestPostgresStore_ApplyEvent_Idempotency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := entitlement.NewPostgresStore(newTestPool(t))
	userID := uuid.New()
	eventID := "evt_" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	res, err := store.ApplyEvent(ctx, eventID, userID, now, activateMutation(entitlement.TierPremium, "sub_1", now))
	require.NoError(t, err)
	assert.Equal(t, entitlement.ApplyApplied, res)

	before, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierPremium, before.Tier)

	mutationRan := false
	res, err = store.ApplyEvent(ctx, eventID, userID, now, func(rec *entitlement.EntitlementRecord) {
		mutationRan = true
	})
	require.NoError(t, err)
	assert.Equal(t, entitlement.ApplyAlreadyApplied, res)
	assert.False(t, mutationRan)

	after, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "record must be identical after a duplicate delivery")
}

func TestPostgresStore_ApplyEvent_TimestampOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := entitlement.NewPostgresStore(newTestPool(t))
	userID := uuid.New()

	t1 := time.Now().UTC().Truncate(time.Microsecond)
	t0 := t1.Add(-time.Hour)

	res, err := store.ApplyEvent(ctx, "evt_"+uuid.NewString(), userID, t1, activateMutation(entitlement.TierPremium, "sub_new", t1))
	require.NoError(t, err)
	assert.Equal(t, entitlement.ApplyApplied, res)

	// Older event delivered late: marked seen but must not regress the tier.
	res, err = store.ApplyEvent(ctx, "evt_"+uuid.NewString(), userID, t0, activateMutation(entitlement.TierFreemium, "sub_old", t0))
	require.NoError(t, err)
	assert.Equal(t, entitlement.ApplySuperseded, res)

	rec, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierPremium, rec.Tier)
	assert.True(t, rec.LastAppliedEventAt.Equal(t1))
}

func TestPostgresStore_ApplyEvent_ConcurrentFirstEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := entitlement.NewPostgresStore(newTestPool(t))

	// Two events for a user with no record yet race through the no-row
	// branch; the older one must lose no matter which transaction commits
	// first. Repeated to give the race a chance to interleave both ways.
	for range 10 {
		userID := uuid.New()
		newerAt := time.Now().UTC().Truncate(time.Microsecond)
		olderAt := newerAt.Add(-time.Minute)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.ApplyEvent(ctx, "evt_"+uuid.NewString(), userID, newerAt,
				activateMutation(entitlement.TierPremium, "sub_new", newerAt))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := store.ApplyEvent(ctx, "evt_"+uuid.NewString(), userID, olderAt,
				activateMutation(entitlement.TierFreemium, "sub_old", olderAt))
			assert.NoError(t, err)
		}()
		wg.Wait()

		rec, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, entitlement.TierPremium, rec.Tier,
			"older concurrent event must not clobber the newer one")
		assert.True(t, rec.LastAppliedEventAt.Equal(newerAt),
			"last applied timestamp must never move backwards")
	}
}

func TestPostgresStore_IncrementUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := entitlement.NewPostgresStore(newTestPool(t))
	userID := uuid.New()
	day := entitlement.Day("2025-06-01")

	count, granted, err := store.IncrementUsage(ctx, userID, day, 2)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.EqualValues(t, 1, count)

	count, granted, err = store.IncrementUsage(ctx, userID, day, 2)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.EqualValues(t, 2, count)

	count, granted, err = store.IncrementUsage(ctx, userID, day, 2)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.EqualValues(t, 2, count, "denied call must not mutate the counter")

	// New day starts at zero implicitly.
	count, granted, err = store.IncrementUsage(ctx, userID, entitlement.Day("2025-06-02"), 2)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.EqualValues(t, 1, count)
}

func TestPostgresStore_IncrementUsage_ConcurrentAtLimit(t *testing.T) {
	t.Parallel()

	const (
		workers = 20
		limit   = 5
	)

	ctx := context.Background()
	store := entitlement.NewPostgresStore(newTestPool(t))
	userID := uuid.New()
	day := entitlement.Day("2025-06-01")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.IncrementUsage(ctx, userID, day, limit)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, granted, "exactly min(N, K) calls may succeed")

	count, ok, err := store.IncrementUsage(ctx, userID, day, limit)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, limit, count, "final count never exceeds the limit")
}
