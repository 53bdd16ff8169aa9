package domain

import "errors"

var (
	// ErrInvalidInput covers malformed polygons, bad step sizes and unknown
	// preset names. It is always raised before any provider call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a forward lookup has no match.
	ErrNotFound = errors.New("not found")

	// ErrProvider wraps failures of the external geocoding service
	// (network, auth, quota, malformed response, timeout).
	ErrProvider = errors.New("geocoding provider error")
)
