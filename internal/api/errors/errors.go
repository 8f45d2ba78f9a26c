package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies an API error.
type ErrorType string

const (
	// ErrorTypeValidation represents a malformed or missing request input.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeTooLarge represents a request area exceeding the standard's
	// maximum display size.
	ErrorTypeTooLarge ErrorType = "too_large"

	// ErrorTypeUpstream represents a failed dependency call (DSS or USS).
	// Served as 412: the precondition of a complete observation could not
	// be met.
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeNotFound represents a not found error.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeInternal represents an internal server error.
	ErrorTypeInternal ErrorType = "internal"
)

// APIError represents a standardized API error.
type APIError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	HTTPCode  int       `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Code, e.Message)
}

// WithDetails adds details to the error.
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error.
func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

// ValidationError creates a new validation error.
func ValidationError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeValidation,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// TooLargeError creates an error for views exceeding the display maximum.
func TooLargeError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeTooLarge,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusRequestEntityTooLarge,
	}
}

// UpstreamError creates an error for a failed DSS or USS dependency call.
func UpstreamError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeUpstream,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusPreconditionFailed,
	}
}

// NotFoundError creates a new not found error.
func NotFoundError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeNotFound,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusNotFound,
	}
}

// InternalError creates a new internal server error.
func InternalError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeInternal,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusInternalServerError,
	}
}

// FromError converts an error into an APIError, defaulting to internal.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return InternalError("internal_error", err.Error())
}
