package entitlement

import "fmt"

// Tier identifies a subscription tier. The set of tiers is closed: every
// Tier value observable at runtime is produced either by the exported
// constants or by ParseTier, which rejects anything else. Tier configuration
// is resolved through Config, never through external lookups, so an
// unrecognized tier cannot silently fall back to a default.
type Tier string

const (
	TierFreemium Tier = "freemium"
	TierPremium  Tier = "premium"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $9.99 USD would be Amount: 999, Currency: "USD".
type Money struct {
	Amount   int64
	Currency string
}

// TierConfig is the immutable feature/limit set bound to a tier.
// Values are returned by copy; callers cannot mutate tier configuration.
type TierConfig struct {
	DailyPlanLimit     int64 // plan generations allowed per UTC day
	ResourcesPerPlan   int   // resources included in each generated plan
	EmailNotifications bool  // send confirmation email on upgrade to this tier
	Price              Money
}

var tierConfigs = map[Tier]TierConfig{
	TierFreemium: {
		DailyPlanLimit:     1,
		ResourcesPerPlan:   3,
		EmailNotifications: false,
		Price:              Money{Amount: 0, Currency: "USD"},
	},
	TierPremium: {
		DailyPlanLimit:     10,
		ResourcesPerPlan:   7,
		EmailNotifications: true,
		Price:              Money{Amount: 999, Currency: "USD"},
	},
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierConfigs[t]
	return ok
}

// Config returns the immutable configuration for the tier.
// Panics on an unknown tier to fail fast: the only way to hold an invalid
// Tier is to bypass ParseTier, which is a programming error.
func (t Tier) Config() TierConfig {
	cfg, ok := tierConfigs[t]
	if !ok {
		panic(fmt.Sprintf("entitlement: unknown tier %q", string(t)))
	}
	return cfg
}

// ParseTier converts an externally supplied string into a Tier.
// Returns ErrUnknownTier for anything outside the closed set.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}
