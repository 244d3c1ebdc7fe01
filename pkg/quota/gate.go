package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
)

// DefaultStoreTimeout bounds a single store round trip. The gate fails
// closed when it elapses, so the bound also caps how long a user action
// can hang on the quota check.
const DefaultStoreTimeout = 3 * time.Second

// UsageStore is the subset of the entitlement store the gate depends on.
// Both entitlement.Store implementations and the Redis-backed RedisStore
// satisfy it.
type UsageStore interface {
	IncrementUsage(ctx context.Context, userID uuid.UUID, day entitlement.Day, limit int64) (count int64, granted bool, err error)
}

// Reason classifies a gate decision.
type Reason string

const (
	ReasonGranted          Reason = "granted"
	ReasonQuotaExceeded    Reason = "quota_exceeded"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Decision is the outcome of a quota check. Denial carries no retry
// semantics; the caller surfaces Message and moves on.
type Decision struct {
	Allowed   bool
	Remaining int64 // slots left today after this decision; 0 when denied
	Reason    Reason
}

// Message returns a user-presentable explanation for the decision. The
// quota-exceeded text is a plain business message, deliberately distinct
// from the wording used for system trouble.
func (d Decision) Message() string {
	switch d.Reason {
	case ReasonGranted:
		return "ok"
	case ReasonQuotaExceeded:
		return "You have reached your daily plan limit. Upgrade to Premium or come back tomorrow."
	default:
		return "We could not check your plan limit right now. Please try again in a moment."
	}
}

// Gate is the atomic check-and-increment point for daily usage.
type Gate struct {
	store   UsageStore
	timeout time.Duration
	log     *slog.Logger
}

// GateOption configures optional gate behavior.
type GateOption func(*Gate)

// WithStoreTimeout overrides the bounded store timeout.
func WithStoreTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) GateOption {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGate creates a quota gate backed by the given usage store.
// Panics on a nil store to fail fast during initialization.
func NewGate(store UsageStore, opts ...GateOption) *Gate {
	if store == nil {
		panic(ErrStoreRequired)
	}
	g := &Gate{
		store:   store,
		timeout: DefaultStoreTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAndIncrement consumes one usage slot for (userID, day) if the tier's
// daily limit allows it. The slot is consumed at check time and is not
// returned if the caller later fails or is cancelled.
//
// Store failures and timeouts fail closed: the decision is a denial with
// ReasonStoreUnavailable rather than an error, because an uncertain grant
// must never be handed out.
func (g *Gate) CheckAndIncrement(ctx context.Context, userID uuid.UUID, tier entitlement.Tier, day entitlement.Day) Decision {
	limit := tier.Config().DailyPlanLimit

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	count, granted, err := g.store.IncrementUsage(ctx, userID, day, limit)
	if err != nil {
		g.log.WarnContext(ctx, "quota check failed closed",
			slog.String("user_id", userID.String()),
			slog.String("day", string(day)),
			slog.Any("error", err))
		return Decision{Allowed: false, Reason: ReasonStoreUnavailable}
	}

	if !granted {
		return Decision{Allowed: false, Reason: ReasonQuotaExceeded}
	}

	return Decision{
		Allowed:   true,
		Remaining: max(limit-count, 0),
		Reason:    ReasonGranted,
	}
}
