package email

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/billing"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
)

// AddressLookup resolves a user ID to the email address notifications go
// to. Implementations typically query the account store.
type AddressLookup func(ctx context.Context, userID uuid.UUID) (string, error)

// upgradeTmpl is intentionally plain HTML. Transactional upgrade notices
// do not need a layout system.
var upgradeTmpl = template.Must(template.New("upgrade").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto;">
	<h2>Your {{.Tier}} subscription is active</h2>
	<p>Thanks for upgrading! Your account now includes:</p>
	<ul>
		<li>{{.DailyPlanLimit}} plan generations per day</li>
		<li>Up to {{.ResourcesPerPlan}} resources per plan</li>
	</ul>
	<p>The new limits apply immediately.</p>
</body>
</html>
`))

type upgradeData struct {
	Tier             string
	DailyPlanLimit   int64
	ResourcesPerPlan int
}

// UpgradeNotifier sends the subscription upgrade confirmation. It
// implements the billing processor's notifier hook; the processor calls it
// exactly once per newly applied upgrade event, so the notifier itself does
// not deduplicate.
type UpgradeNotifier struct {
	sender EmailSender
	lookup AddressLookup
}

// NewUpgradeNotifier creates the notifier.
// Panics on nil dependencies to fail fast during initialization.
func NewUpgradeNotifier(sender EmailSender, lookup AddressLookup) *UpgradeNotifier {
	if sender == nil {
		panic("email: sender is required")
	}
	if lookup == nil {
		panic("email: address lookup is required")
	}
	return &UpgradeNotifier{sender: sender, lookup: lookup}
}

var _ billing.Notifier = (*UpgradeNotifier)(nil)

// SubscriptionUpgraded renders and sends the upgrade confirmation email.
func (n *UpgradeNotifier) SubscriptionUpgraded(ctx context.Context, userID uuid.UUID, tier entitlement.Tier) error {
	addr, err := n.lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddressNotFound, err)
	}

	cfg := tier.Config()
	var body strings.Builder
	if err := upgradeTmpl.Execute(&body, upgradeData{
		Tier:             strings.ToUpper(string(tier)[:1]) + string(tier)[1:],
		DailyPlanLimit:   cfg.DailyPlanLimit,
		ResourcesPerPlan: cfg.ResourcesPerPlan,
	}); err != nil {
		return err
	}

	return n.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   addr,
		Subject:  "Your subscription upgrade is confirmed",
		BodyHTML: body.String(),
		Tag:      "subscription-upgraded",
	})
}
