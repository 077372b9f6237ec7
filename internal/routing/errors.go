package routing

import "errors"

var (
	// ErrNoTier means the ZIP code is not owned by any tier. This is a
	// normal terminal outcome, not an operational failure — callers must
	// record it with StatusNoTier and skip the outbound bid.
	ErrNoTier = errors.New("zip code not in any tier")

	// ErrInvalidZip means the ZIP code could not be normalized to a
	// 5-digit numeric string.
	ErrInvalidZip = errors.New("invalid zip code format")
)
