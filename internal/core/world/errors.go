package world

import "errors"

var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrComponentNotFound = errors.New("component not found")
	ErrResourceNotFound  = errors.New("resource not found")

	// ErrAccessRevoked is returned by every Access method after Release.
	// Holding an Access past the call it was issued for is a caller bug.
	ErrAccessRevoked = errors.New("world access revoked")
)
