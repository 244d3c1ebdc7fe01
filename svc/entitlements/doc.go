// Package entitlements composes the entitlement engine into an HTTP
// service: the billing webhook endpoint, the quota-gated plan generation
// endpoint, and the read-only entitlement view.
//
// The package owns wiring only. Signature verification, event processing,
// quota decisions, and snapshot loading live in their own packages; New
// assembles them from configuration and Router exposes them via chi.
//
// Endpoints:
//
//	POST /webhooks/billing        inbound payment-provider events
//	POST /quota/plan-generations  consume one daily plan-generation slot
//	GET  /entitlements/me         current user's entitlement snapshot
//	POST /checkout                create a hosted checkout session
//	GET  /healthz                 readiness probe
//
// The webhook endpoint answers 200 only after the event is durably applied
// (or is a duplicate/superseded redelivery); a store outage answers 503 so
// the provider redelivers. Rejected deliveries answer 400 and are never
// retried into acceptance.
package entitlements
