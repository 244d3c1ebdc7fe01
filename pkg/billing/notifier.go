package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
)

// Notifier is invoked after a tier upgrade to a notification-enabled tier
// has been durably applied. Delivery is fire-and-forget: the processor logs
// a failure and never blocks or reverts the entitlement mutation because of
// it. Implementations must tolerate duplicate suppression being upstream;
// the processor only calls the notifier when the event was newly applied.
type Notifier interface {
	SubscriptionUpgraded(ctx context.Context, userID uuid.UUID, tier entitlement.Tier) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, userID uuid.UUID, tier entitlement.Tier) error

func (f NotifierFunc) SubscriptionUpgraded(ctx context.Context, userID uuid.UUID, tier entitlement.Tier) error {
	return f(ctx, userID, tier)
}
