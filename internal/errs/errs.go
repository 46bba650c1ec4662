// Package errs defines the error kinds surfaced by pflexctl.
//
// Errors are created with Newf and carry a kind mark, so callers test them with
// errors.Is(err, errs.ErrNotFound) regardless of how much context was wrapped on top.
package errs

import (
	"github.com/cockroachdb/errors"
)

// Error kinds.
var (
	ErrConnection            = errors.New("connection failure")
	ErrNotFound              = errors.New("not found")
	ErrAmbiguousResource     = errors.New("ambiguous resource")
	ErrAmbiguousIdentifier   = errors.New("ambiguous identifier")
	ErrInvalidFilterKey      = errors.New("invalid filter key")
	ErrUnsupportedOperator   = errors.New("unsupported filter operator")
	ErrInvalidFilterValue    = errors.New("invalid filter value")
	ErrPreconditionFailed    = errors.New("precondition failed")
	ErrInvalidSize           = errors.New("invalid size")
	ErrInvalidName           = errors.New("invalid name")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrBackendOperation      = errors.New("backend operation failed")
	ErrUnsupportedForVersion = errors.New("unsupported for version")
)

var validationKinds = []error{
	ErrAmbiguousIdentifier,
	ErrInvalidFilterKey,
	ErrUnsupportedOperator,
	ErrInvalidFilterValue,
	ErrPreconditionFailed,
	ErrInvalidSize,
	ErrInvalidName,
	ErrInvalidParameter,
}

// Newf creates a new error of the given kind.
func Newf(kind error, format string, args ...any) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), kind)
}

// Mark tags an existing error with a kind.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, kind)
}

// WithHint attaches a user-facing hint, typically the parameter that resolves the error.
func WithHint(err error, hint string) error {
	return errors.WithHint(err, hint)
}

// Operation wraps the failure of a named backend operation.
func Operation(name string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "%s failed", name), ErrBackendOperation)
}

// IsValidation reports whether err was raised by input validation, before any
// mutating backend call.
func IsValidation(err error) bool {
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Message renders an error with its hints for the failure result.
func Message(err error) string {
	msg := err.Error()
	if hint := errors.FlattenHints(err); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsValidation(err):
		return 2
	default:
		return 1
	}
}
