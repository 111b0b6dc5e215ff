package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrInvalidEvent is returned when a report fails validation.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnknownDriver is returned by Open for an unsupported engine name.
	ErrUnknownDriver = errors.New("unknown database driver")
)
