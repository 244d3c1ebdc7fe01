package session

import "errors"

var (
	ErrStoreRequired  = errors.New("session entitlement store is required")
	ErrUserIDRequired = errors.New("session user id is required")
	ErrNoSnapshot     = errors.New("no entitlement snapshot in context")
	ErrUnauthorized   = errors.New("request is not authenticated")
)
