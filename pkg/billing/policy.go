package billing

import "fmt"

// CancellationPolicy controls when a subscription.canceled event takes
// effect. The payment provider's documentation is ambiguous on this point,
// so the behavior is configured explicitly rather than guessed.
type CancellationPolicy string

const (
	// CancelImmediately downgrades the user to Freemium as soon as the
	// cancellation event is applied.
	CancelImmediately CancellationPolicy = "immediate"

	// CancelAtPeriodEnd keeps Premium access until the end of the current
	// billing period. The record's CancelAt deadline carries the downgrade;
	// a deadline check outside this package (or EffectiveTierAt at read
	// time) makes it take effect.
	CancelAtPeriodEnd CancellationPolicy = "period_end"
)

// Valid reports whether the policy is one of the known values.
func (p CancellationPolicy) Valid() bool {
	return p == CancelImmediately || p == CancelAtPeriodEnd
}

// ParseCancellationPolicy converts a configuration string into a policy.
func ParseCancellationPolicy(s string) (CancellationPolicy, error) {
	p := CancellationPolicy(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown cancellation policy %q", s)
	}
	return p, nil
}
