package billing

import "errors"

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrStoreUnavailable = errors.New("entitlement store unavailable")

	ErrIdempotencyKeyRequired = errors.New("checkout idempotency key is required")
	ErrMissingPriceID         = errors.New("price ID is required")
	ErrMissingUserID          = errors.New("user ID is required")
	ErrMissingAPIKey          = errors.New("billing provider API key is required")
	ErrInvalidEnvironment     = errors.New("invalid billing provider environment")
	ErrNoCheckoutURL          = errors.New("no checkout URL returned from provider")
)
