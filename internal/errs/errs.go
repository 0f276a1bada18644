// README: Error taxonomy shared by all modules; the HTTP layer maps kinds to status codes.
package errs

import (
	"errors"
	"fmt"
)

// Kinds. Module errors wrap exactly one of these so callers can use errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrGeofence          = errors.New("outside geofence")
	ErrForbidden         = errors.New("forbidden")
)

// Error carries a human-readable reason on top of a kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func NotFound(msg string) error     { return &Error{Kind: ErrNotFound, Msg: msg} }
func Validation(msg string) error   { return &Error{Kind: ErrValidation, Msg: msg} }
func InvalidState(msg string) error { return &Error{Kind: ErrInvalidState, Msg: msg} }
func Forbidden(msg string) error    { return &Error{Kind: ErrForbidden, Msg: msg} }

func InsufficientStock(msg string) error {
	return &Error{Kind: ErrInsufficientStock, Msg: msg}
}

// GeofenceError reports how far the caller was from the drop.
type GeofenceError struct {
	Distance float64
	Radius   int
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("you must be within %dm of the drop location, current distance is %.2fm", e.Radius, e.Distance)
}

func (e *GeofenceError) Unwrap() error { return ErrGeofence }

// Kind returns the kind sentinel err wraps, or nil for infrastructure errors.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrInvalidState, ErrInsufficientStock, ErrGeofence, ErrForbidden} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
