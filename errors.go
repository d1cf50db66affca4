package idb

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the store can produce. The kinds mirror
// the DOMException names thrown by a real IndexedDB implementation.
type ErrorKind uint8

const (
	// ErrInvalidState: an operation was used outside its legal lifecycle
	// window (closed/closing connection, finished transaction, deleted
	// store or index).
	ErrInvalidState ErrorKind = iota + 1

	// ErrData: malformed key, key path, range or value argument.
	ErrData

	// ErrConstraint: duplicate key on an add, or duplicate store/index name.
	ErrConstraint

	// ErrNotFound: missing store, index or database name.
	ErrNotFound

	// ErrVersion: requested version is lower than the stored version.
	ErrVersion

	// ErrAbort: the request was caught in an aborted transaction.
	ErrAbort

	// ErrType: wrong argument shape or type, raised synchronously.
	ErrType

	// ErrDataClone: the value cannot be structurally cloned.
	ErrDataClone
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidState:
		return "InvalidStateError"
	case ErrData:
		return "DataError"
	case ErrConstraint:
		return "ConstraintError"
	case ErrNotFound:
		return "NotFoundError"
	case ErrVersion:
		return "VersionError"
	case ErrAbort:
		return "AbortError"
	case ErrType:
		return "TypeError"
	case ErrDataClone:
		return "DataCloneError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is the concrete error type returned by all database operations.
type Error struct {
	Kind ErrorKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// KindOf returns the kind of err, or 0 if err is not a store error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func kindErrf(kind ErrorKind, format string, args ...any) *Error {
	var cause error
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			cause = err
		}
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}

func invalidStateErrf(format string, args ...any) *Error {
	return kindErrf(ErrInvalidState, format, args...)
}
func dataErrf(format string, args ...any) *Error {
	return kindErrf(ErrData, format, args...)
}
func constraintErrf(format string, args ...any) *Error {
	return kindErrf(ErrConstraint, format, args...)
}
func notFoundErrf(format string, args ...any) *Error {
	return kindErrf(ErrNotFound, format, args...)
}
func versionErrf(format string, args ...any) *Error {
	return kindErrf(ErrVersion, format, args...)
}
func abortErrf(format string, args ...any) *Error {
	return kindErrf(ErrAbort, format, args...)
}
func typeErrf(format string, args ...any) *Error {
	return kindErrf(ErrType, format, args...)
}
func dataCloneErrf(format string, args ...any) *Error {
	return kindErrf(ErrDataClone, format, args...)
}
