package entitlement

import "errors"

var (
	ErrUnknownTier = errors.New("unknown subscription tier")

	ErrRecordNotFound = errors.New("entitlement record not found")

	ErrEventIDRequired = errors.New("event ID is required")
	ErrUserIDRequired  = errors.New("user ID is required")

	ErrStoreUnavailable = errors.New("entitlement store unavailable")
)
