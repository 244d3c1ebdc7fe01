// Package entitlement is the persisted source of truth for a user's
// subscription tier and daily usage counters.
//
// The package defines a closed set of subscription tiers, each bound to an
// immutable configuration, and the EntitlementRecord that tracks which tier
// a user is currently entitled to. Records are mutated exclusively through
// Store.ApplyEvent, which combines the record mutation and the idempotency
// bookkeeping for the triggering webhook event into a single atomic unit.
// Usage counters are mutated exclusively through Store.IncrementUsage, a
// single conditional check-and-increment.
//
// # Architecture
//
//   - Tier: closed variant (Freemium, Premium) with immutable TierConfig
//   - EntitlementRecord: per-user tier state, owned by the store
//   - UsageCounter: per-user, per-day counter, lazily created
//   - Store: the persistence contract (Get, ApplyEvent, IncrementUsage)
//   - MemoryStore: mutex-guarded in-memory implementation for tests and dev
//   - PostgresStore: pgx-backed implementation using conditional updates
//
// # Ordering and idempotency
//
// ApplyEvent enforces two invariants at the storage boundary so that callers
// never need read-modify-write sequences:
//
//   - a given event ID is applied at most once; a repeat returns
//     ApplyAlreadyApplied without re-executing the mutation
//   - a mutation is skipped (ApplySuperseded) when the event's timestamp is
//     older than the record's LastAppliedEventAt, implementing
//     last-writer-by-timestamp-wins rather than last-writer-by-arrival-wins
//
// Both outcomes are successes from the caller's perspective: the event is
// durably marked as seen and redeliveries can be acknowledged.
//
// # Usage counters
//
// A counter row for a new day is implicitly zero; there is no reset job that
// could race with reads. IncrementUsage increments only while count is below
// the supplied limit, so concurrent calls can never over-grant:
//
//	count, ok, err := store.IncrementUsage(ctx, userID, entitlement.Today(), cfg.DailyPlanLimit)
//	if err != nil {
//		// treat as denied; see pkg/quota for the fail-closed gate
//	}
//	if !ok {
//		// daily limit reached
//	}
package entitlement
