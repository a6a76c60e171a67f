package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
// Handlers must use these constants instead of hardcoded strings; the HTTP
// layer maps codes to statuses by prefix.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationMessageEmpty   ErrorCode = "validation_message_empty"
	ErrCodeValidationMessageTooLong ErrorCode = "validation_message_too_long"
	ErrCodeValidationScheduleInPast ErrorCode = "validation_schedule_in_past"
	ErrCodeValidationScheduleTooFar ErrorCode = "validation_schedule_too_far"
	ErrCodeValidationInvalidJSON    ErrorCode = "validation_invalid_json"
	ErrCodeValidationFailed         ErrorCode = "validation_failed"

	// Auth (401)
	ErrCodeAuthSessionMissing ErrorCode = "auth_session_missing"
	ErrCodeAuthSessionInvalid ErrorCode = "auth_session_invalid"
	ErrCodeAuthSessionExpired ErrorCode = "auth_session_expired"
	ErrCodeAuthNoCredentials  ErrorCode = "auth_no_stored_credentials"

	// Quota (429)
	ErrCodeRateLimit     ErrorCode = "rate_limit_exceeded"
	ErrCodeUpstreamQuota ErrorCode = "rate_limit_upstream_quota"

	// Not Found (404)
	ErrCodeNotFoundScheduledPost ErrorCode = "not_found_scheduled_post"

	// Upstream / Internal (500)
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRejected    ErrorCode = "upstream_rejected"
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its HTTP status. Unrecognized codes fall
// back to 500 as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case c == ErrCodeAuthNoCredentials:
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "rate_limit_"):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	default:
		// Upstream and internal failures alike surface as 500; the envelope
		// message is what tells the caller whether the provider or we failed.
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError so the HTTP boundary can translate them
// into the response envelope without leaking wrapped internals.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus returns the HTTP status code for this error's code.
func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{Code: e.Code, Message: e.Message, Err: e.Err, Details: merged}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
