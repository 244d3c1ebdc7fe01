package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
)

// Snapshot is a point-in-time, read-only view of a user's entitlements.
// All feature gating inside a single unit of work reads from the same
// snapshot, so the unit observes one consistent tier even if a webhook
// lands halfway through.
type Snapshot struct {
	UserID   uuid.UUID
	Tier     entitlement.Tier // effective tier at LoadedAt, cancellation deadlines resolved
	Record   *entitlement.EntitlementRecord
	LoadedAt time.Time
}

// Premium reports whether the snapshot's effective tier is Premium.
func (s *Snapshot) Premium() bool {
	return s.Tier == entitlement.TierPremium
}

// InGrace reports whether the user was inside a payment-failure grace
// window when the snapshot was taken.
func (s *Snapshot) InGrace() bool {
	return s.Record != nil && s.Record.InGraceAt(s.LoadedAt)
}

// Config returns the tier configuration the snapshot entitles the user to.
func (s *Snapshot) Config() entitlement.TierConfig {
	return s.Tier.Config()
}

type ctxKey struct{}

// WithSnapshot returns a context carrying the snapshot.
func WithSnapshot(ctx context.Context, snap *Snapshot) context.Context {
	return context.WithValue(ctx, ctxKey{}, snap)
}

// FromContext extracts the snapshot placed by WithSnapshot or the
// middleware. The second return is false when no snapshot is present.
func FromContext(ctx context.Context) (*Snapshot, bool) {
	snap, ok := ctx.Value(ctxKey{}).(*Snapshot)
	return snap, ok
}
