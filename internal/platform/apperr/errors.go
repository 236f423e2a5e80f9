// Package apperr defines the error kinds services return and the echo
// error handler that turns them into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error carries a client-safe message for one of the kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(ErrValidation, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(ErrConflict, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newf(ErrForbidden, format, args...)
}

// IsKnown reports whether err is one of the client-facing kinds. Anything
// else is an internal failure.
func IsKnown(err error) bool {
	for _, kind := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Wrap adds operation context to internal errors and passes known kinds
// through untouched so callers can still match on them.
func Wrap(op string, err error) error {
	if err == nil || IsKnown(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
