// Package errors defines the error taxonomy shared by the reactor, the
// router and the attribute handles.
//
// Every failure surfaced to callers wraps exactly one of the sentinel kinds
// below, so callers can branch with the standard library:
//
//	if errors.Is(err, pzaerrors.ErrTimeout) { ... }
//
// The underlying cause, when there is one, stays reachable through the same
// errors.Is / errors.As calls.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	// ErrConfig reports a missing or malformed configuration field.
	ErrConfig = stderrors.New("configuration error")

	// ErrSession reports that the transport refused the session.
	ErrSession = stderrors.New("session error")

	// ErrNotFound reports that no attribute metadata matched.
	ErrNotFound = stderrors.New("attribute not found")

	// ErrInvalidType reports a metadata type that differs from the requested kind.
	ErrInvalidType = stderrors.New("invalid attribute type")

	// ErrInvalidMode reports an operation forbidden by the attribute mode.
	ErrInvalidMode = stderrors.New("operation not allowed by attribute mode")

	// ErrPublish reports that the publisher rejected a frame.
	ErrPublish = stderrors.New("publish failed")

	// ErrSubscribe reports that a subscriber declaration failed.
	ErrSubscribe = stderrors.New("subscribe failed")

	// ErrTimeout reports an expired confirmation, wait, prime or structure wait.
	ErrTimeout = stderrors.New("timeout")

	// ErrDecode reports an inbound frame that could not be decoded.
	ErrDecode = stderrors.New("decode failed")

	// ErrChannelClosed reports that a waiter's channel closed before a frame arrived.
	ErrChannelClosed = stderrors.New("channel closed")

	// ErrRejected reports a value refused by an enforced whitelist.
	ErrRejected = stderrors.New("value rejected by whitelist")
)

var kinds = []error{
	ErrConfig,
	ErrSession,
	ErrNotFound,
	ErrInvalidType,
	ErrInvalidMode,
	ErrPublish,
	ErrSubscribe,
	ErrTimeout,
	ErrDecode,
	ErrChannelClosed,
	ErrRejected,
}

// Error is a classified error carrying the failed operation and the topic
// it concerned.
type Error struct {
	Kind  error
	Op    string
	Topic string
	Err   error
}

// New creates a classified error. err may be nil.
func New(kind error, op, topic string, err error) *Error {
	return &Error{Kind: kind, Op: op, Topic: topic, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Topic != "" {
		fmt.Fprintf(&b, "%s: ", e.Topic)
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// InvalidTypeError details an ErrInvalidType failure.
type InvalidTypeError struct {
	Expected string
	Found    string
}

// Error implements the error interface.
func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("expected %s, found %s", e.Expected, e.Found)
}

// InvalidType creates a classified ErrInvalidType error.
func InvalidType(topic, expected, found string) *Error {
	return New(ErrInvalidType, "build", topic, &InvalidTypeError{Expected: expected, Found: found})
}

// Kind returns the taxonomy kind of err, or nil when err is not classified.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if stderrors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Is reports whether err matches target. It is a shorthand for the standard
// library function so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is a shorthand for the standard library function.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
