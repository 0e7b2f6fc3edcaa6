// Package errors defines the typed error taxonomy shared by services and the
// HTTP layer. Every core operation returns one of these so the transport can
// map failures to status codes without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeValidation        = "validation_error"
	CodeConflict          = "conflict"
	CodeNotFound          = "not_found"
	CodeInvalidTransition = "invalid_status_transition"
	CodeExhausted         = "exhausted"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeRateLimited       = "rate_limit_exceeded"
	CodeInternal          = "internal_error"
)

// ServiceError is a typed error with an HTTP status mapping.
type ServiceError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetail attaches a detail field and returns the error for chaining.
func (e *ServiceError) WithDetail(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Validation reports malformed input rejected before core logic runs.
func Validation(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusBadRequest}
}

// Conflict reports a uniqueness violation (duplicate referral, claim, email,
// invite code).
func Conflict(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusConflict}
}

// NotFound reports an unknown entry, edge, claim, or referrer.
func NotFound(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusNotFound}
}

// InvalidTransition reports a status state machine violation.
func InvalidTransition(from, to string) *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot transition from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// Exhausted reports a bounded retry budget being exceeded.
func Exhausted(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: CodeExhausted, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusServiceUnavailable}
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden reports an authenticated caller acting outside its tenant.
func Forbidden(message string) *ServiceError {
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// RateLimitExceeded reports request throttling.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("rate limit of %d requests per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Internal wraps an unexpected failure. The cause is kept for logs but never
// serialized to clients.
func Internal(err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: "internal error", HTTPStatus: http.StatusInternalServerError, cause: err}
}

// From coerces any error into a ServiceError, defaulting to Internal.
func From(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return Internal(err)
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code string) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code == code
	}
	return false
}
