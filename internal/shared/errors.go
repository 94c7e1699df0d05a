package shared

import "errors"

// Sentinel errors every module maps onto HTTP problem responses. Services
// return these untouched; translation to a status code happens once, in
// the handlers.
var (
	// ErrNotFound marks a missing or soft-deleted resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers unknown usernames and wrong passwords
	// alike, so login failures never reveal which half was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
