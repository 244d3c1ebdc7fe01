package webhook

import "errors"

var (
	ErrSecretRequired   = errors.New("webhook secret is required")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrMissingHeaders   = errors.New("missing required signature headers")
	ErrInvalidTimestamp = errors.New("invalid webhook timestamp format")
)
