package store

import "github.com/pkg/errors"

// Sentinel error kinds surfaced by the store. Callers classify with errors.Is;
// the HTTP layer maps them to response statuses.
var (
	// ErrNotFound indicates the referenced profile or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation, e.g. a duplicate slug.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates caller input violates a documented constraint.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidRange indicates a numeric option is outside its documented range.
	ErrInvalidRange = errors.New("out of range")
	// ErrNoFieldsConfigured indicates a profile has no enabled fields to index.
	ErrNoFieldsConfigured = errors.New("no fields configured")
)
