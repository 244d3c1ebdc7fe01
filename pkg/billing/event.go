package billing

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
)

// EventType is the normalized billing event type carried in the envelope.
type EventType string

const (
	EventSubscriptionActivated EventType = "subscription.activated"
	EventSubscriptionCanceled  EventType = "subscription.canceled"
	EventPaymentFailed         EventType = "payment.failed"
)

// ProcessingState tracks how far a delivery got through the processor.
type ProcessingState string

const (
	StateReceived ProcessingState = "received"
	StateVerified ProcessingState = "verified"
	StateApplied  ProcessingState = "applied"
	StateRejected ProcessingState = "rejected"
)

// RejectReason classifies terminal rejections for logging and alerting.
type RejectReason string

const (
	ReasonSignatureInvalid RejectReason = "signature_invalid"
	ReasonReplaySuspected  RejectReason = "replay_suspected"
	ReasonMalformedPayload RejectReason = "malformed_payload"
)

// Event is a parsed webhook event envelope.
type Event struct {
	ID             string
	Type           EventType
	OccurredAt     time.Time
	UserID         uuid.UUID
	Tier           entitlement.Tier // set for subscription.activated
	SubscriptionID string
	CustomerID     string
	PeriodEnd      *time.Time // set when the provider reports the billing-period end
}

// Known reports whether the event type is one the processor applies.
// Unknown types are acknowledged without business effect.
func (e *Event) Known() bool {
	switch e.Type {
	case EventSubscriptionActivated, EventSubscriptionCanceled, EventPaymentFailed:
		return true
	default:
		return false
	}
}

type eventEnvelope struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		UserID         string `json:"user_id"`
		Tier           string `json:"tier"`
		SubscriptionID string `json:"subscription_id"`
		CustomerID     string `json:"customer_id"`
		PeriodEnd      string `json:"period_end"`
	} `json:"data"`
}

// ParseEvent decodes and validates a webhook payload.
// Envelope fields (id, type, occurred_at) are required regardless of type.
// Data fields are validated only for the types the processor applies, so
// an unknown event type with an unfamiliar data shape still parses and can
// be acknowledged instead of bouncing back to the provider as malformed.
func ParseEvent(payload []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	if env.ID == "" || env.Type == "" {
		return nil, errors.Join(ErrMalformedPayload, errors.New("event id and type are required"))
	}

	occurredAt, err := time.Parse(time.RFC3339, env.OccurredAt)
	if err != nil {
		return nil, errors.Join(ErrMalformedPayload, errors.New("occurred_at must be RFC3339"))
	}

	evt := &Event{
		ID:             env.ID,
		Type:           EventType(env.Type),
		OccurredAt:     occurredAt.UTC(),
		SubscriptionID: env.Data.SubscriptionID,
		CustomerID:     env.Data.CustomerID,
	}

	if !evt.Known() {
		return evt, nil
	}

	userID, err := uuid.Parse(env.Data.UserID)
	if err != nil {
		return nil, errors.Join(ErrMalformedPayload, errors.New("data.user_id must be a UUID"))
	}
	evt.UserID = userID

	if env.Data.PeriodEnd != "" {
		pe, err := time.Parse(time.RFC3339, env.Data.PeriodEnd)
		if err != nil {
			return nil, errors.Join(ErrMalformedPayload, errors.New("data.period_end must be RFC3339"))
		}
		pe = pe.UTC()
		evt.PeriodEnd = &pe
	}

	if evt.Type == EventSubscriptionActivated {
		tier, err := entitlement.ParseTier(env.Data.Tier)
		if err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		evt.Tier = tier
	}

	return evt, nil
}
