package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// EntitlementRecord tracks which tier a user is entitled to and which
// webhook event established it. Records are created on the first applied
// checkout event and never deleted; cancellation transitions the tier
// instead of removing history.
//
// The record is owned by the Store: user-facing code reads it through
// Store.Get (or a session snapshot), and only the webhook event processor
// mutates it, through Store.ApplyEvent.
type EntitlementRecord struct {
	UserID                 uuid.UUID
	Tier                   Tier
	TierEffectiveAt        time.Time
	ExternalCustomerID     string // billing provider's customer ID (ctm_xxx, cus_xxx)
	ExternalSubscriptionID string // billing provider's subscription ID
	LastAppliedEventID     string
	LastAppliedEventAt     time.Time

	// CancelAt is set when a cancellation takes effect at period end.
	// The tier stays Premium until the deadline; EffectiveTierAt resolves
	// the downgrade without requiring a sweep job to have run.
	CancelAt *time.Time

	// GraceUntil is set by a failed payment. A deadline check outside this
	// package downgrades the user if the payment is not resolved in time.
	GraceUntil *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveTierAt resolves the tier in force at the given instant, taking a
// pending period-end cancellation into account. It never consults client
// input and never mutates the record.
func (r *EntitlementRecord) EffectiveTierAt(at time.Time) Tier {
	if r.CancelAt != nil && !at.Before(*r.CancelAt) {
		return TierFreemium
	}
	return r.Tier
}

// InGraceAt reports whether the user is inside a payment-failure grace
// window at the given instant.
func (r *EntitlementRecord) InGraceAt(at time.Time) bool {
	return r.GraceUntil != nil && at.Before(*r.GraceUntil)
}

// IsPremiumAt reports whether the effective tier at the given instant is
// Premium.
func (r *EntitlementRecord) IsPremiumAt(at time.Time) bool {
	return r.EffectiveTierAt(at) == TierPremium
}
