package common

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvariantViolation marks a state that correctly ordered checks make
	// unreachable. Callers must treat it as fatal and never clamp around it.
	ErrInvariantViolation = errors.New("invariant violation")
)
