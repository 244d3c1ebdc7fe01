package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ApplyResult is the outcome of Store.ApplyEvent.
type ApplyResult string

const (
	// ApplyApplied means the mutation ran and the event was marked applied.
	ApplyApplied ApplyResult = "applied"

	// ApplyAlreadyApplied means the event ID was seen before; the mutation
	// did not run. Callers should acknowledge the delivery as a success and
	// skip downstream side effects such as notifications.
	ApplyAlreadyApplied ApplyResult = "already_applied"

	// ApplySuperseded means the event arrived after a newer event had
	// already been applied (by timestamp, not arrival order). The event is
	// marked as seen so redeliveries can be acknowledged, but the record is
	// left untouched.
	ApplySuperseded ApplyResult = "superseded"
)

// Mutation adjusts an entitlement record in place. It runs inside the
// store's atomic apply unit and must be free of I/O and side effects; the
// store may discard the change and re-run it, or never run it at all.
type Mutation func(rec *EntitlementRecord)

// Store is the sole owner of persisted EntitlementRecord and UsageCounter
// rows. No other component writes tier state directly: the webhook event
// processor goes through ApplyEvent and the quota gate through
// IncrementUsage. Both must behave correctly under concurrent invocation
// for the same key, which is why each is a single atomic store operation
// rather than a read-then-write sequence performed by the caller.
type Store interface {
	// Get retrieves the entitlement record for a user.
	// Returns ErrRecordNotFound if the user has never completed a checkout;
	// callers treat that as Freemium.
	Get(ctx context.Context, userID uuid.UUID) (*EntitlementRecord, error)

	// ApplyEvent runs the mutation and marks the event as applied in one
	// atomic unit. If the unit cannot complete, neither part persists and
	// the event remains unapplied so the provider's redelivery recovers it.
	// The record is created if the user has none yet.
	ApplyEvent(ctx context.Context, eventID string, userID uuid.UUID, occurredAt time.Time, mutate Mutation) (ApplyResult, error)

	// IncrementUsage atomically increments the (userID, day) counter if and
	// only if the current count is below limit. It returns the count after
	// the operation and whether the increment was granted. Two logically
	// simultaneous calls must not both succeed when one slot remains.
	IncrementUsage(ctx context.Context, userID uuid.UUID, day Day, limit int64) (count int64, granted bool, err error)
}
