// Package fault classifies errors into the kinds callers branch on:
// bad request, not found and conflict. Kinds survive wrapping, so a store
// error keeps its meaning all the way up through the engine.
package fault

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind of failure
type Kind uint8

// failure kinds
const (
	KUnknown Kind = iota
	KBadRequest
	KNotFound
	KConflict
)

func (k Kind) String() string {
	switch k {
	case KBadRequest:
		return "bad request"
	case KNotFound:
		return "not found"
	case KConflict:
		return "conflict"
	}

	return "unknown"
}

// StatusCode maps a kind to the HTTP status an outer layer should answer with
func (k Kind) StatusCode() int {
	switch k {
	case KBadRequest:
		return http.StatusBadRequest
	case KNotFound:
		return http.StatusNotFound
	case KConflict:
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

// Error is a classified error, Subject is usually the id of the
// entity the failure is about
type Error struct {
	Kind    Kind
	Subject string
	Message string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()

	if e.Message != "" {
		msg = msg + ": " + e.Message
	}

	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}

	return msg
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error { return e.cause }

// Cause is for github.com/pkg/errors compatibility
func (e *Error) Cause() error { return e.cause }

// StatusCode returns the HTTP status code of this error's kind
func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

// New creates a new classified error
func New(kind Kind, subject string, format string, args ...interface{}) error {
	return &Error{
		Kind:    kind,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap classifies an existing error, returns nil if err is nil
func Wrap(kind Kind, err error, subject string, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:    kind,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
		cause:   err,
	}
}

// BadRequest is a shorthand for New(KBadRequest, ...)
func BadRequest(subject string, format string, args ...interface{}) error {
	return New(KBadRequest, subject, format, args...)
}

// NotFound is a shorthand for New(KNotFound, ...)
func NotFound(subject string, format string, args ...interface{}) error {
	return New(KNotFound, subject, format, args...)
}

// Conflict is a shorthand for New(KConflict, ...)
func Conflict(subject string, format string, args ...interface{}) error {
	return New(KConflict, subject, format, args...)
}

// KindOf returns the kind of the outermost classified error in the chain
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	return KUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsBadRequest(err error) bool { return Is(err, KBadRequest) }
func IsNotFound(err error) bool   { return Is(err, KNotFound) }
func IsConflict(err error) bool   { return Is(err, KConflict) }

// StatusCode returns the HTTP status code for any error, 500 for
// unclassified ones
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	return KindOf(err).StatusCode()
}
