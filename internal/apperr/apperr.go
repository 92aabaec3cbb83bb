// Package apperr defines the error taxonomy shared by the ledger and
// invoice services. Callers match kinds with errors.Is.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrValidation is returned for malformed input: bad amounts, missing
	// fields, inconsistent tax flags, overpayment.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity does not exist for
	// the calling tenant.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for illegal state transitions, duplicate sale
	// postings and deletes blocked by dependents.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned when the caller's tenant does not own the
	// entity, or no tenant was supplied.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTimeout is returned when the caller's deadline expired or the
	// operation was canceled before it committed.
	ErrTimeout = errors.New("operation timed out")
)

// Error carries an error kind plus the operation that produced it.
type Error struct {
	// Op is the operation that failed, e.g. "invoice.RecordPayment".
	Op string

	// Kind is one of the package-level sentinels.
	Kind error

	// Msg describes the failure for humans.
	Msg string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newf(kind error, op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation builds an ErrValidation error.
func Validation(op, format string, args ...any) error {
	return newf(ErrValidation, op, format, args...)
}

// NotFound builds an ErrNotFound error.
func NotFound(op, format string, args ...any) error {
	return newf(ErrNotFound, op, format, args...)
}

// Conflict builds an ErrConflict error.
func Conflict(op, format string, args ...any) error {
	return newf(ErrConflict, op, format, args...)
}

// Unauthorized builds an ErrUnauthorized error.
func Unauthorized(op, format string, args ...any) error {
	return newf(ErrUnauthorized, op, format, args...)
}

// Wrap attaches a kind to an existing error.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// FromContext maps context cancellation to ErrTimeout and returns any
// other error unchanged.
func FromContext(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Op: op, Kind: ErrTimeout, Err: err}
	}
	return err
}

// KindOf returns the taxonomy kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrTimeout} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// RequireTenant returns ErrUnauthorized when tenantID is empty.
func RequireTenant(op, tenantID string) error {
	if tenantID == "" {
		return Unauthorized(op, "tenant is required")
	}
	return nil
}
