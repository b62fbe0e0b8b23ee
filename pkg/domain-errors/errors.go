// Package domainerrors provides coded errors for business outcomes.
//
// Stores return sentinel errors (pkg/platform/sentinel) for infrastructure
// facts; services translate those into coded errors here so transports can
// map them to stable, documented response codes. A caller must always be
// able to tell a business rejection apart from a transient failure:
// CodeRetryable is reserved for the latter and is never attached to a
// rejection that would also fail on retry.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable classification of an error.
type Code string

const (
	// CodeBadRequest marks malformed or out-of-schema input. Raised before
	// any transaction opens; implies no side effects occurred.
	CodeBadRequest Code = "bad_request"

	// CodeDenied marks an ownership, permission, or status-prohibition
	// rejection. The transaction was rolled back with nothing written.
	CodeDenied Code = "denied"

	// CodeNotFound marks an absent target resource. This is a terminal
	// business outcome, not a retry condition.
	CodeNotFound Code = "not_found"

	// CodeConflict marks a uniqueness or concurrent-state conflict that a
	// retry with the same input would hit again (e.g. name already taken).
	CodeConflict Code = "conflict"

	// CodeRetryable marks a transient store failure (serialization
	// conflict, lost connection). The whole transaction rolled back and
	// the caller may retry a bounded number of times.
	CodeRetryable Code = "retryable"

	// CodeInvariantViolation marks a resource found in a state that should
	// be impossible (e.g. deletionTime before creationTime). Treated as a
	// logged defect; the resource is excluded from automated mutation.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeTimeout marks a context deadline or cancellation.
	CodeTimeout Code = "timeout"

	// CodeInternal marks an unexpected failure with no better classification.
	CodeInternal Code = "internal"
)

// Error is a coded error. Use New or Wrap to construct one.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// yields nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err has none.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// MessageOf returns the message of a coded error, or err.Error() otherwise.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}

// IsRetryable reports whether the caller may usefully retry the operation.
func IsRetryable(err error) bool {
	return HasCode(err, CodeRetryable)
}
