// Package apperrors holds the error taxonomy shared by the portal services.
// Services wrap these sentinels with context and handlers map them to HTTP
// statuses with errors.Is.
package apperrors

import "errors"

var (
	// ErrNotFound is returned when a referenced project, verifier or
	// verification record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when no valid principal is present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the principal lacks the role or
	// ownership an operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when an operation would break a uniqueness
	// invariant, such as a second active verification for a project.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
)
