package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/webhook"
)

// DefaultGracePeriod is how long a user keeps access after a failed payment
// before the external deadline check downgrades them.
const DefaultGracePeriod = 72 * time.Hour

// Delivery is one inbound webhook delivery: the raw payload exactly as
// received, plus the signature material extracted from the HTTP headers.
// The payload is forwarded to the verifier untouched; any re-serialization
// would break the signature.
type Delivery struct {
	Payload []byte
	Headers webhook.Headers
}

// Outcome reports how a delivery was handled.
//
// Acked tells the transport layer whether to answer with success: it is
// true for applied events, duplicate and superseded redeliveries, and
// unknown event types (acknowledged to stop provider retries, left in
// Verified). It is false for rejections, so the provider does not mistake
// rejection for durable acceptance.
//
// State is Applied only when the mutation ran during this delivery;
// duplicate and superseded redeliveries stay in Verified, with Result
// carrying the store's verdict.
type Outcome struct {
	EventID string
	State   ProcessingState
	Reason  RejectReason
	Result  entitlement.ApplyResult
	Acked   bool
}

// Processor is the webhook event processor. It verifies delivery
// authenticity, parses the event envelope, and applies tier mutations to
// the entitlement store idempotently.
type Processor struct {
	verifier *webhook.Verifier
	store    entitlement.Store
	notifier Notifier
	metrics  *Metrics
	log      *slog.Logger

	policy CancellationPolicy
	grace  time.Duration
}

// ProcessorOption configures optional processor behavior.
type ProcessorOption func(*Processor)

// WithNotifier sets the upgrade-notification collaborator.
func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

// WithMetrics wires Prometheus counters for applied/rejected events.
func WithMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithCancellationPolicy selects when subscription.canceled takes effect.
func WithCancellationPolicy(policy CancellationPolicy) ProcessorOption {
	return func(p *Processor) {
		if policy.Valid() {
			p.policy = policy
		}
	}
}

// WithGracePeriod sets the payment-failure grace window.
func WithGracePeriod(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.grace = d
		}
	}
}

// NewProcessor creates a webhook event processor.
// Panics if verifier or store is nil to fail fast during initialization.
// Defaults: period-end cancellation, 72h grace window, no notifier, no
// metrics, slog default logger.
func NewProcessor(verifier *webhook.Verifier, store entitlement.Store, opts ...ProcessorOption) *Processor {
	if verifier == nil {
		panic("billing: webhook verifier is required")
	}
	if store == nil {
		panic("billing: entitlement store is required")
	}

	p := &Processor{
		verifier: verifier,
		store:    store,
		log:      slog.Default(),
		policy:   CancelAtPeriodEnd,
		grace:    DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one delivery through the state machine.
//
// A non-nil error is returned only when the entitlement store was
// unavailable; the event then stays unapplied and the caller must answer
// with a retryable status so the provider redelivers. Every other outcome,
// including rejection, is final and carries no error.
func (p *Processor) Process(ctx context.Context, d Delivery) (Outcome, error) {
	switch p.verifier.Verify(d.Payload, d.Headers.Signatures, d.Headers.Timestamp) {
	case webhook.ResultStale:
		return p.reject(ctx, d.Headers.ID, ReasonReplaySuspected), nil
	case webhook.ResultInvalid:
		return p.reject(ctx, d.Headers.ID, ReasonSignatureInvalid), nil
	case webhook.ResultValid:
	}

	evt, err := ParseEvent(d.Payload)
	if err != nil {
		p.log.WarnContext(ctx, "webhook payload rejected",
			slog.String("event_id", d.Headers.ID),
			slog.String("reason", string(ReasonMalformedPayload)),
			slog.Any("error", err))
		p.metrics.observeRejected(ReasonMalformedPayload)
		return Outcome{EventID: d.Headers.ID, State: StateRejected, Reason: ReasonMalformedPayload}, nil
	}

	if !evt.Known() {
		// Acknowledged so the provider stops retrying; logged for forward
		// compatibility when the provider introduces new event types.
		p.log.InfoContext(ctx, "unknown webhook event type acknowledged",
			slog.String("event_id", evt.ID),
			slog.String("event_type", string(evt.Type)))
		return Outcome{EventID: evt.ID, State: StateVerified, Acked: true}, nil
	}

	result, err := p.store.ApplyEvent(ctx, evt.ID, evt.UserID, evt.OccurredAt, p.mutationFor(evt))
	if err != nil {
		// Leave the event unacknowledged; the provider's redelivery is the
		// retry mechanism.
		p.log.ErrorContext(ctx, "failed to apply webhook event",
			slog.String("event_id", evt.ID),
			slog.Any("error", err))
		return Outcome{EventID: evt.ID, State: StateReceived}, errors.Join(ErrStoreUnavailable, err)
	}

	out := Outcome{EventID: evt.ID, State: StateVerified, Result: result, Acked: true}
	if result == entitlement.ApplyApplied {
		out.State = StateApplied
		p.metrics.observeApplied()
		p.notifyUpgrade(ctx, evt)
	} else {
		p.log.InfoContext(ctx, "webhook event acknowledged without effect",
			slog.String("event_id", evt.ID),
			slog.String("result", string(result)))
	}

	return out, nil
}

// mutationFor translates an event into the record mutation the store runs
// inside its atomic apply unit.
func (p *Processor) mutationFor(evt *Event) entitlement.Mutation {
	switch evt.Type {
	case EventSubscriptionActivated:
		return func(rec *entitlement.EntitlementRecord) {
			rec.Tier = evt.Tier
			rec.TierEffectiveAt = evt.OccurredAt
			rec.ExternalSubscriptionID = evt.SubscriptionID
			if evt.CustomerID != "" {
				rec.ExternalCustomerID = evt.CustomerID
			}
			// Reactivation clears any pending cancellation or grace window.
			rec.CancelAt = nil
			rec.GraceUntil = nil
		}

	case EventSubscriptionCanceled:
		policy := p.policy
		if policy == CancelAtPeriodEnd && evt.PeriodEnd == nil {
			// Without a reported period end there is nothing to defer to.
			policy = CancelImmediately
		}
		return func(rec *entitlement.EntitlementRecord) {
			switch policy {
			case CancelImmediately:
				rec.Tier = entitlement.TierFreemium
				rec.TierEffectiveAt = evt.OccurredAt
				rec.CancelAt = nil
			case CancelAtPeriodEnd:
				rec.CancelAt = evt.PeriodEnd
			}
			rec.GraceUntil = nil
		}

	case EventPaymentFailed:
		deadline := evt.OccurredAt.Add(p.grace)
		return func(rec *entitlement.EntitlementRecord) {
			rec.GraceUntil = &deadline
		}
	}

	// Unreachable: Known() is checked before mutationFor.
	return func(*entitlement.EntitlementRecord) {}
}

// notifyUpgrade fires the confirmation notification for upgrades to a
// notification-enabled tier. Failures are logged and never revert or delay
// the already-applied entitlement mutation.
func (p *Processor) notifyUpgrade(ctx context.Context, evt *Event) {
	if p.notifier == nil || evt.Type != EventSubscriptionActivated {
		return
	}
	if !evt.Tier.Config().EmailNotifications {
		return
	}

	if err := p.notifier.SubscriptionUpgraded(ctx, evt.UserID, evt.Tier); err != nil {
		p.log.ErrorContext(ctx, "upgrade notification failed",
			slog.String("event_id", evt.ID),
			slog.String("user_id", evt.UserID.String()),
			slog.Any("error", err))
	}
}

func (p *Processor) reject(ctx context.Context, eventID string, reason RejectReason) Outcome {
	p.log.WarnContext(ctx, "webhook delivery rejected",
		slog.String("event_id", eventID),
		slog.String("reason", string(reason)))
	p.metrics.observeRejected(reason)
	return Outcome{EventID: eventID, State: StateRejected, Reason: reason}
}
