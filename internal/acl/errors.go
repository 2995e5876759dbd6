package acl

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine for a rejected operation
// wraps exactly one of these, so callers can branch with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAlreadyResolved is returned when reviewing a request that is no longer pending.
	ErrAlreadyResolved = fmt.Errorf("%w: request already resolved", ErrConflict)

	// ErrBusy is returned by stores when a write lost a lock race and may be retried.
	ErrBusy = errors.New("store busy")
)

// Error describes a rejected operation.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // operation that failed, e.g. "review"
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func notFoundf(op, format string, args ...any) error {
	return newError(ErrNotFound, op, format, args...)
}

func forbiddenf(op, format string, args ...any) error {
	return newError(ErrForbidden, op, format, args...)
}

func conflictf(op, format string, args ...any) error {
	return newError(ErrConflict, op, format, args...)
}

func invalidf(op, format string, args ...any) error {
	return newError(ErrInvalidRequest, op, format, args...)
}

// NotFoundError is used by store implementations to report a missing record.
func NotFoundError(op, format string, args ...any) error { return notFoundf(op, format, args...) }

// ConflictError is used by store implementations to report a uniqueness violation.
func ConflictError(op, format string, args ...any) error { return conflictf(op, format, args...) }

// InvalidError is used by store implementations to reject input, such as a
// reference to a user that does not exist.
func InvalidError(op, format string, args ...any) error { return invalidf(op, format, args...) }

// retryable reports whether a store write may succeed if attempted again.
func retryable(err error) bool {
	return errors.Is(err, ErrBusy) || (errors.Is(err, ErrConflict) && !errors.Is(err, ErrAlreadyResolved))
}
