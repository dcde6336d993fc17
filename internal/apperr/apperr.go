// Package apperr defines the error taxonomy shared by every service in the
// backend. Errors are sentinel values wrapped with %w so callers can match
// them with errors.Is and the HTTP layer can translate them to stable codes.
package apperr

import "errors"

var (
	// ErrUnauthorized covers missing, invalid, or expired credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden covers authenticated callers lacking permission, or
	// attempts to modify a protected resource such as a system role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound covers entities that are absent or belong to another
	// organization; the two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers uniqueness violations.
	ErrConflict = errors.New("conflict")
	// ErrValidation covers malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrBadRequest covers well-formed but semantically invalid requests.
	ErrBadRequest = errors.New("bad request")
)

// Code returns the stable machine-readable code for an error, or "internal"
// when the error is outside the taxonomy.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}
