package faults

import (
	"errors"
	"fmt"
)

type ErrorCategory string

const (
	ValidationError       ErrorCategory = "ValidationError"
	TransportError        ErrorCategory = "TransportError"
	TLSError              ErrorCategory = "TLSError"
	UnauthenticatedError  ErrorCategory = "UnauthenticatedError"
	ForbiddenError        ErrorCategory = "ForbiddenError"
	NotFoundError         ErrorCategory = "NotFoundError"
	MethodNotAllowedError ErrorCategory = "MethodNotAllowedError"
	ClientError           ErrorCategory = "ClientError"
	ServerError           ErrorCategory = "ServerError"
	DecodeError           ErrorCategory = "DecodeError"
	InternalError         ErrorCategory = "InternalError"
)

// TypedError is the single error shape returned by the registry client and
// the reconciliation engine. StatusCode is set when the failure came from an
// HTTP response.
type TypedError struct {
	Category   ErrorCategory
	Message    string
	StatusCode int
	Cause      error
}

func (e *TypedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" && e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Category, e.StatusCode)
	}
	return string(e.Category)
}

func (e *TypedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewTypedError(category ErrorCategory, message string, cause error) *TypedError {
	return &TypedError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func NewStatusError(category ErrorCategory, statusCode int, message string) *TypedError {
	return &TypedError{
		Category:   category,
		Message:    message,
		StatusCode: statusCode,
	}
}

func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}

	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return false
	}
	return typedErr.Category == category
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return 0
	}
	return typedErr.StatusCode
}

func Validation(message string, cause error) error {
	return NewTypedError(ValidationError, message, cause)
}

func Internal(message string, cause error) error {
	return NewTypedError(InternalError, message, cause)
}
