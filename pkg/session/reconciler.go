package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
)

// DefaultRefreshInterval bounds how long a cached snapshot can serve
// requests before the store is consulted again. A webhook-applied tier
// change therefore becomes visible within one interval without any push
// machinery.
const DefaultRefreshInterval = time.Minute

// RecordSource is the read side of the entitlement store the reconciler
// depends on.
type RecordSource interface {
	Get(ctx context.Context, userID uuid.UUID) (*entitlement.EntitlementRecord, error)
}

// Reconciler produces entitlement snapshots and keeps a small per-user
// cache so every request does not hit the store. It only ever reads;
// writes stay with the webhook event processor.
type Reconciler struct {
	source   RecordSource
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID]*Snapshot
}

// Option configures optional reconciler behavior.
type Option func(*Reconciler)

// WithRefreshInterval overrides how long cached snapshots stay fresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// NewReconciler creates a snapshot reconciler over the given record source.
// Panics on a nil source to fail fast during initialization.
func NewReconciler(source RecordSource, opts ...Option) *Reconciler {
	if source == nil {
		panic(ErrStoreRequired)
	}
	r := &Reconciler{
		source:   source,
		interval: DefaultRefreshInterval,
		now:      time.Now,
		log:      slog.Default(),
		cache:    make(map[uuid.UUID]*Snapshot),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the snapshot for the user, serving from cache while it is
// fresh and re-reading the store once the refresh interval has elapsed.
func (r *Reconciler) Load(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	if userID == uuid.Nil {
		return nil, ErrUserIDRequired
	}

	now := r.now()

	r.mu.RLock()
	snap, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && now.Sub(snap.LoadedAt) < r.interval {
		return snap, nil
	}

	return r.Refresh(ctx, userID)
}

// Refresh re-reads the store unconditionally and replaces the cached
// snapshot. Call it right after an action that is known to change the
// tier, such as returning from checkout.
func (r *Reconciler) Refresh(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	if userID == uuid.Nil {
		return nil, ErrUserIDRequired
	}

	now := r.now()

	rec, err := r.source.Get(ctx, userID)
	switch {
	case errors.Is(err, entitlement.ErrRecordNotFound):
		// Never checked out. Freemium by definition, not an error.
		rec = nil
	case err != nil:
		return nil, err
	}

	snap := &Snapshot{
		UserID:   userID,
		Tier:     entitlement.TierFreemium,
		Record:   rec,
		LoadedAt: now,
	}
	if rec != nil {
		snap.Tier = rec.EffectiveTierAt(now)
	}

	r.mu.Lock()
	r.cache[userID] = snap
	r.mu.Unlock()

	return snap, nil
}

// Invalidate drops the cached snapshot for a user. The next Load will
// read the store.
func (r *Reconciler) Invalidate(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}
