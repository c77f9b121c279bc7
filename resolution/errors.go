package resolution

import (
	"errors"
	"net/http"
)

// Sentinel errors for the claim resolution engine. Handlers match these with
// errors.Is and map them to HTTP statuses via StatusFor.
var (
	// ErrNotFound means a referenced id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a precondition was violated by a concurrent state
	// change (duplicate active claim, stale decision, delete with an active
	// claim). Callers should reload state before retrying.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition means the requested state change is not legal from
	// the current state. Never retried.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidation means a required field is missing or malformed. No
	// mutation was performed.
	ErrValidation = errors.New("validation error")

	// ErrClosed means a mutation was attempted on a closed thread.
	ErrClosed = errors.New("thread closed")

	// ErrUnauthorized means the caller does not own the resource.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusFor maps an engine error to an HTTP status code. Unrecognized errors
// are treated as transient backend failures.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrClosed):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
