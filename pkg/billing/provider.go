package billing

import (
	"context"
	"time"
)

// Provider is the outbound payment-provider client. Implementations handle
// provider-specific quirks internally; callers only deal with normalized
// requests and sessions.
//
// Every checkout creation carries a caller-supplied idempotency key so that
// client-side retries never create duplicate external subscriptions. An
// implementation must reject requests without one.
type Provider interface {
	// CreateCheckout creates a hosted checkout session for the given price.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// CheckoutRequest contains the data needed to create a checkout session.
type CheckoutRequest struct {
	IdempotencyKey string // required; retries with the same key must not duplicate
	PriceID        string // provider's price identifier for the tier
	UserID         string // internal user ID, round-tripped via webhook custom data
	Email          string // optional billing email to pre-fill
	SuccessURL     string // redirect after successful payment
}

// Validate checks the request's required fields.
func (r CheckoutRequest) Validate() error {
	if r.IdempotencyKey == "" {
		return ErrIdempotencyKeyRequired
	}
	if r.PriceID == "" {
		return ErrMissingPriceID
	}
	if r.UserID == "" {
		return ErrMissingUserID
	}
	return nil
}

// CheckoutSession represents a hosted checkout session.
type CheckoutSession struct {
	URL       string    // hosted checkout URL
	SessionID string    // provider's session identifier
	ExpiresAt time.Time // link expiration
}
