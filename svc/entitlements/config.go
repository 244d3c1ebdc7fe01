package entitlements

import "time"

// Config holds the service configuration. Webhook secrets are a list so a
// secret rotation can keep the previous secret valid while the provider
// switches over.
type Config struct {
	// Inbound webhook verification.
	WebhookSecrets   []string      `env:"BILLING_WEBHOOK_SECRETS,required" envSeparator:","`
	WebhookTolerance time.Duration `env:"BILLING_WEBHOOK_TOLERANCE" envDefault:"5m"`
	MaxWebhookBody   int64         `env:"BILLING_MAX_WEBHOOK_BODY" envDefault:"1048576"`

	// Event application behavior.
	CancellationPolicy string        `env:"BILLING_CANCELLATION_POLICY" envDefault:"period_end"`
	GracePeriod        time.Duration `env:"BILLING_GRACE_PERIOD" envDefault:"72h"`

	// Quota gate and session snapshots.
	QuotaStoreTimeout      time.Duration `env:"QUOTA_STORE_TIMEOUT" envDefault:"3s"`
	SessionRefreshInterval time.Duration `env:"SESSION_REFRESH_INTERVAL" envDefault:"1m"`

	// Outbound checkout.
	PremiumPriceID     string `env:"BILLING_PREMIUM_PRICE_ID"`
	CheckoutSuccessURL string `env:"BILLING_CHECKOUT_SUCCESS_URL"`
}
