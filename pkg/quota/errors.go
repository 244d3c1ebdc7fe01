package quota

import "errors"

var (
	ErrStoreRequired = errors.New("quota usage store is required")
)
