// Package fmerr defines the structured errors every engine operation returns.
//
// An operation either yields a value or exactly one *Error carrying a Kind;
// errors cross layer boundaries by value, never by panic. A layer forwards a
// received error unchanged unless it can add diagnostic context, in which
// case Annotate wraps the original as the cause so the kind and the full
// chain survive errors.Is / errors.As.
package fmerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an engine error.
type Kind string

const (
	// KindUnknown tags errors that did not originate in this taxonomy.
	KindUnknown Kind = ""

	// KindExtensionLoad indicates an extension module could not be found,
	// opened, or used after being closed.
	KindExtensionLoad Kind = "EXTENSION_LOAD"

	// KindSymbolNotFound indicates a required entry point is absent from an
	// extension module.
	KindSymbolNotFound Kind = "SYMBOL_NOT_FOUND"

	// KindUnsupportedOperation indicates an operation compiled out of this
	// build. Terminal: retrying can never succeed.
	KindUnsupportedOperation Kind = "UNSUPPORTED_OPERATION"

	// KindInvalidOperation indicates a call that violates the invocation
	// contract, such as two concurrent mutations of one source fragment.
	KindInvalidOperation Kind = "INVALID_OPERATION"

	// KindInvalidArgument indicates malformed caller input.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"

	// KindNotFound indicates a named object or store entry does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindStorage indicates an object-store failure.
	KindStorage Kind = "STORAGE"

	// KindInternal indicates a broken invariant inside the engine, such as
	// an entry point returning neither a fragment nor an error.
	KindInternal Kind = "INTERNAL"
)

// Error is the structured error type returned across invoker boundaries.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New returns an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf returns an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind with cause preserved for
// errors.Is / errors.Unwrap.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Kind != KindUnknown {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.cause)
	}
	return msg
}

// Unwrap exposes the original error, if any.
func (e *Error) Unwrap() error { return e.cause }

// Annotate wraps err with additional context while preserving its kind and
// its chain. A nil err stays nil.
func Annotate(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Message: message, cause: err}
}

// Annotatef is Annotate with a formatted message.
func Annotatef(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Message: fmt.Sprintf(format, args...), cause: err}
}

// KindOf reports the kind of err, walking the wrap chain. Errors from
// outside this taxonomy report KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
