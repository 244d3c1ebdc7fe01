// Package billing consumes payment-provider webhook deliveries and applies
// the resulting subscription-tier changes to the entitlement store.
//
// Each delivery moves through a small per-event state machine:
//
//	Received -> Verified -> Applied
//	Received -> Rejected   (terminal: invalid/stale signature, malformed payload)
//
// The processor is safe under at-least-once, out-of-order delivery. Event
// application order is enforced by event timestamp, not arrival order, and
// the entitlement store guarantees each event ID is applied at most once;
// duplicate deliveries are acknowledged without re-executing business
// effects, so the upgrade confirmation email is sent exactly once.
//
// The record mutation and the applied-mark are one atomic store unit. When
// that unit cannot complete, the processor returns an error and the HTTP
// layer answers with a retryable status: recovery rides on the provider's
// own redelivery, there is no internal retry loop.
//
// Rejected deliveries are logged and counted (see Metrics) for security
// alerting, produce a non-success response so the provider does not mistake
// rejection for durable acceptance, and never affect other events or users.
//
// Unknown event types are acknowledged to stop provider retries and logged
// at informational level for forward compatibility.
//
// The package also defines the Provider abstraction for the outbound side
// of the billing integration. Creating a checkout session requires a
// caller-supplied idempotency key so client-side retries can never create
// duplicate external subscriptions. A Paddle implementation is included.
package billing
