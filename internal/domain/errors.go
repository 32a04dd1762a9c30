package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field, coordinates out of range).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrLegNotFound is returned when a leg completion references a leg id the
// store has never seen. Handlers map this to HTTP 404.
var ErrLegNotFound = errors.New("leg not found")

// ErrLegAlreadyCompleted is returned when a completion targets a leg that is
// no longer in progress. A completed leg is never re-applied.
// Handlers map this to HTTP 409.
var ErrLegAlreadyCompleted = errors.New("leg already completed")

// ErrLegInProgress is returned when a new leg would give its owner a second
// in-progress leg. Handlers map this to HTTP 409.
var ErrLegInProgress = errors.New("another leg is already in progress")

// ErrAuthenticationRequired is returned when no identity was supplied and none
// could be inferred from the appointment. Callers redirect to sign-in.
// Handlers map this to HTTP 401.
var ErrAuthenticationRequired = errors.New("authentication required")
