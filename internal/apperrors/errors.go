package apperrors

import "errors"

// Sentinel errors for the business-rule taxonomy. Services wrap these with a
// human-readable reason via fmt.Errorf("%w: ...") and handlers map them to
// HTTP status codes with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)
