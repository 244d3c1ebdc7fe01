package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/session"
)

// testClock is a settable time source shared by a test and its reconciler.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func upgradeToPremium(t *testing.T, store entitlement.Store, userID uuid.UUID, at time.Time) {
	t.Helper()
	res, err := store.ApplyEvent(context.Background(), uuid.NewString(), userID, at, func(rec *entitlement.EntitlementRecord) {
		rec.Tier = entitlement.TierPremium
		rec.TierEffectiveAt = at
	})
	require.NoError(t, err)
	require.Equal(t, entitlement.ApplyApplied, res)
}

func TestReconciler_Load_DefaultsToFreemium(t *testing.T) {
	t.Parallel()

	rec := session.NewReconciler(entitlement.NewMemoryStore())

	snap, err := rec.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierFreemium, snap.Tier)
	assert.Nil(t, snap.Record, "a user who never checked out has no record")
	assert.False(t, snap.Premium())
}

func TestReconciler_Load_RejectsNilUser(t *testing.T) {
	t.Parallel()

	rec := session.NewReconciler(entitlement.NewMemoryStore())

	_, err := rec.Load(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, session.ErrUserIDRequired)
}

func TestReconciler_SnapshotIsStableUntilRefreshInterval(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := entitlement.NewMemoryStore()
	userID := uuid.New()
	rec := session.NewReconciler(store,
		session.WithRefreshInterval(30*time.Second),
		session.WithClock(clock.Now),
	)

	snap, err := rec.Load(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, entitlement.TierFreemium, snap.Tier)

	// Tier changes in the store while the cached snapshot is still fresh.
	upgradeToPremium(t, store, userID, clock.Now())

	clock.Advance(10 * time.Second)
	snap, err = rec.Load(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierFreemium, snap.Tier,
		"within the interval the cached view keeps serving")

	clock.Advance(30 * time.Second)
	snap, err = rec.Load(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierPremium, snap.Tier,
		"once the interval elapses the store is consulted again")
}

func TestReconciler_RefreshBypassesCache(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := entitlement.NewMemoryStore()
	userID := uuid.New()
	rec := session.NewReconciler(store, session.WithClock(clock.Now))

	snap, err := rec.Load(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, entitlement.TierFreemium, snap.Tier)

	upgradeToPremium(t, store, userID, clock.Now())

	snap, err = rec.Refresh(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierPremium, snap.Tier,
		"explicit refresh sees the change immediately")
	assert.True(t, snap.Premium())
}

func TestReconciler_InvalidateDropsCachedView(t *testing.T) {
	t.Parallel()

	store := entitlement.NewMemoryStore()
	userID := uuid.New()
	rec := session.NewReconciler(store)

	_, err := rec.Load(context.Background(), userID)
	require.NoError(t, err)

	upgradeToPremium(t, store, userID, time.Now())
	rec.Invalidate(userID)

	snap, err := rec.Load(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierPremium, snap.Tier)
}

func TestReconciler_ResolvesPeriodEndCancellation(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := entitlement.NewMemoryStore()
	userID := uuid.New()
	cancelAt := clock.Now().Add(time.Hour)

	res, err := store.ApplyEvent(context.Background(), uuid.NewString(), userID, clock.Now(), func(rec *entitlement.EntitlementRecord) {
		rec.Tier = entitlement.TierPremium
		rec.CancelAt = &cancelAt
	})
	require.NoError(t, err)
	require.Equal(t, entitlement.ApplyApplied, res)

	rec := session.NewReconciler(store, session.WithClock(clock.Now))

	snap, err := rec.Load(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierPremium, snap.Tier, "before the deadline the paid period still applies")

	clock.Advance(2 * time.Hour)
	snap, err = rec.Refresh(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierFreemium, snap.Tier, "after the deadline the snapshot resolves the downgrade")
}

func TestSnapshot_ContextRoundTrip(t *testing.T) {
	t.Parallel()

	snap := &session.Snapshot{UserID: uuid.New(), Tier: entitlement.TierPremium}
	ctx := session.WithSnapshot(context.Background(), snap)

	got, ok := session.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, snap, got)

	_, ok = session.FromContext(context.Background())
	assert.False(t, ok)
}

type failingSource struct{}

func (failingSource) Get(ctx context.Context, userID uuid.UUID) (*entitlement.EntitlementRecord, error) {
	return nil, errors.New("connection refused")
}

func TestReconciler_Load_PropagatesStoreError(t *testing.T) {
	t.Parallel()

	rec := session.NewReconciler(failingSource{})

	_, err := rec.Load(context.Background(), uuid.New())
	require.Error(t, err)
}
