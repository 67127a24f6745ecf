// Package errors provides the typed failure taxonomy shared by the API
// gateway client and the page controllers. Every backend call resolves to
// either a payload or one of these codes; callers branch on the code, never
// on error strings.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode classifies a failed operation.
type ErrorCode string

const (
	// Local failures (no network call was made, or none should be retried)
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Backend failures, classified from the HTTP response
	CodeBadRequest   ErrorCode = "BAD_REQUEST"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeServerError  ErrorCode = "SERVER_ERROR"

	// Transport failure before any status code was received
	CodeNetworkError ErrorCode = "NETWORK_ERROR"

	// Business errors with a dedicated page affordance
	CodeNoIngredients ErrorCode = "NO_INGREDIENTS"
)

// AppError is a classified error carrying the upstream cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the upstream error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Retryable reports whether a manual retry of the same call can succeed
// without the user changing anything first.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case CodeNetworkError, CodeServerError, CodeNotFound:
		return true
	default:
		return false
	}
}

// New creates a classified error.
func New(code ErrorCode, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

// NewValidationError creates a local validation failure. It blocks
// submission and must never be preceded or followed by a network call.
func NewValidationError(details string) *AppError {
	return New(CodeValidationFailed, "Validation failed", details)
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "Authentication required"
	}
	return New(CodeUnauthorized, message, "")
}

// NewNotFoundError creates a not found error for a named resource.
func NewNotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), "")
}

// NewNetworkError wraps a transport-level failure.
func NewNetworkError(cause error) *AppError {
	return New(CodeNetworkError, "Backend unreachable", "").WithCause(cause)
}

// NewNoIngredientsError creates the distinguished empty-inventory error.
// Pages render a redirect affordance for it instead of a retry banner.
func NewNoIngredientsError() *AppError {
	return New(CodeNoIngredients, "No ingredients found", "Add items to your inventory first")
}

// FromStatusCode classifies an HTTP response status into an AppError.
// 2xx statuses must not reach this function.
func FromStatusCode(status int, body string) *AppError {
	switch {
	case status == http.StatusUnauthorized:
		return NewUnauthorizedError("")
	case status == http.StatusNotFound:
		return New(CodeNotFound, "Resource not found", body)
	case status >= 400 && status < 500:
		return New(CodeBadRequest, "Request rejected", body)
	default:
		return New(CodeServerError, "Backend error", fmt.Sprintf("status %d", status))
	}
}

// Is checks whether err is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the code from an error, defaulting to SERVER_ERROR for
// unclassified errors so no failure renders as a success.
func GetCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeServerError
}

// Wrap classifies an unknown error as a server error unless it already
// carries a code.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(CodeServerError, message, "").WithCause(err)
}
