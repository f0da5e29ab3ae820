package errors

import (
	"errors"
	"fmt"
)

// Error represents a typed domain error that knows whether the failed work may be retried.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so errors.Is works against the predefined values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, retryable bool, message string) *Error {
	return &Error{Code: code, Retryable: retryable, Message: message}
}

// Wrap attaches context to an existing error, inheriting code and retry semantics from kind.
func Wrap(err error, kind *Error, message string) *Error {
	if kind == nil {
		kind = ErrInternal
	}
	if message == "" {
		message = kind.Message
	}
	return &Error{Code: kind.Code, Retryable: kind.Retryable, Message: message, Err: err}
}

// Predefined errors for the request pipeline.
var (
	ErrParse      = New("PARSE_ERROR", false, "unprocessable report request")
	ErrDataAccess = New("DATA_ACCESS_ERROR", true, "bridge data access failed")
	ErrGeneration = New("GENERATION_ERROR", true, "report generation failed")
	ErrQueue      = New("QUEUE_ERROR", true, "queue operation failed")
	ErrCacheMiss  = New("CACHE_MISS", true, "cache miss")
	ErrInternal   = New("INTERNAL_ERROR", true, "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, "")
}

// IsRetryable reports whether the work that produced err should be attempted again.
// Untyped errors are assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return FromError(err).Retryable
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
