package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryMutation Category = "mutation"
	CategoryCommand  Category = "command"
	CategoryDispatch Category = "dispatch"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// RxError is a structured error with a stable code and a hint.
type RxError struct {
	// Code is a unique error identifier (e.g., "R001").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of this occurrence.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RxError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RxError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RxError) WithSuggestion(s string) *RxError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *RxError) WithDetail(d string) *RxError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail.
func (e *RxError) WithDetailf(format string, args ...any) *RxError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *RxError) Wrap(err error) *RxError {
	e.Wrapped = err
	return e
}

// New creates an RxError from a registered error code.
func New(code string) *RxError {
	template, ok := registry[code]
	if !ok {
		return &RxError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &RxError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new RxError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RxError {
	return &RxError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an RxError. An error that already is
// (or wraps) an RxError is returned as that RxError.
func FromError(err error, code string) *RxError {
	if err == nil {
		return nil
	}
	var re *RxError
	if stderrors.As(err, &re) {
		return re
	}
	return New(code).Wrap(err)
}

// IsCode reports whether err is, or wraps, an RxError with code.
func IsCode(err error, code string) bool {
	var re *RxError
	return stderrors.As(err, &re) && re.Code == code
}
