// Package quota enforces per-user, per-day usage limits at a single atomic
// check point.
//
// The Gate's CheckAndIncrement reads the user's tier configuration and asks
// the underlying store for one conditional check-and-increment. The store
// operation is atomic at the storage engine (a Lua script in Redis, a
// guarded upsert in Postgres), so two logically simultaneous calls can
// never both succeed when only one slot remains.
//
// A denial is a normal business outcome, not an error: the gate never
// returns an error, logs denials at debug level at most, and attaches a
// user-presentable message distinct from system failures. On any store
// failure, including the gate's bounded timeout, the gate fails closed and
// denies rather than risk an undetected double grant.
//
// Grants are consumed at check time. A caller that is cancelled after a
// successful check does not return the slot; reclamation is deliberately
// traded away for simplicity.
//
//	gate := quota.NewGate(store)
//	d := gate.CheckAndIncrement(ctx, userID, rec.EffectiveTierAt(now), entitlement.Today())
//	if !d.Allowed {
//		// d.Reason distinguishes quota_exceeded from store_unavailable
//	}
package quota
