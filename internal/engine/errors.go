package engine

import "errors"

// Sentinel errors carried across package boundaries. The API layer maps
// them to status codes; the CLI prints them as-is.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)
