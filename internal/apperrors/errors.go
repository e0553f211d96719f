package apperrors

import (
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	KindRuntime Kind = iota
	KindNotFound
	KindValidation
	KindNotAllowed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "RecordNotFoundError"
	case KindValidation:
		return "ValidationError"
	case KindNotAllowed:
		return "OperationNotAllowedError"
	}
	return "RuntimeError"
}

// Detail is one field-level validation message. Key may be a dotted path.
type Detail struct {
	Key     string
	Message string
}

// Error is the error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Details []Detail
	err     error
}

// Sentinels matching any Error of the same kind with errors.Is.
var (
	ErrRuntime    = &Error{Kind: KindRuntime}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotAllowed = &Error{Kind: KindNotAllowed}
)

// NewRuntime returns an internal failure. Its message is not exposed.
func NewRuntime(message string) *Error {
	return &Error{Kind: KindRuntime, Message: message}
}

// Wrap classifies cause as a runtime failure with message.
func Wrap(cause error, message string) *Error {
	return &Error{Kind: KindRuntime, Message: message, err: cause}
}

// NewNotFound returns a missing-record error. An empty message defaults to
// "Not Found".
func NewNotFound(message string) *Error {
	if message == "" {
		message = "Not Found"
	}
	return &Error{Kind: KindNotFound, Message: message}
}

// NewNotAllowed returns a forbidden-operation error.
func NewNotAllowed(message string) *Error {
	if message == "" {
		message = "Method Not Allowed"
	}
	return &Error{Kind: KindNotAllowed, Message: message}
}

// NewValidation returns a request validation error with optional details.
func NewValidation(message string, details ...Detail) *Error {
	e := &Error{Kind: KindValidation, Message: message}
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.err }

// Is matches targets of the same kind. A target with a message also has to
// match the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Status is the HTTP status that describes the error.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindNotAllowed:
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

// Expose reports whether the message is safe to show to end users.
func (e *Error) Expose() bool {
	return e.Kind != KindRuntime
}
