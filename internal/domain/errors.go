package domain

import "errors"

// Error kinds surfaced by the avatar pipeline. Components wrap these with %w so
// the HTTP layer can map them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNoFace     = errors.New("no face detected")
	ErrService    = errors.New("enhancement service error")
	ErrTimeout    = errors.New("processing timed out")
	ErrIO         = errors.New("io error")
	ErrNotFound   = errors.New("not found")
)

// IsClientError reports whether err was caused by bad client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNoFace)
}
