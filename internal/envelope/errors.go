// Package envelope defines the uniform JSON response shape produced by
// every API route, together with the closed set of error kinds the
// pipeline can report.
package envelope

import "net/http"

// Code is a stable machine-readable error code. Clients branch on codes,
// never on messages.
type Code string

// The closed set of error codes.
const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeRateLimited      Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal         Code = "INTERNAL_SERVER_ERROR"
)

// Status returns the fixed HTTP status for the code. Unknown codes map
// to 500 so that a miswired error can never turn into a success.
func (c Code) Status() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a stage rejection carried as a value. It is the body of the
// error envelope and also implements the error interface so it can flow
// through ordinary error returns.
type Error struct {
	Message string `json:"message"`
	Code    Code   `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int {
	return e.Code.Status()
}

// Validation returns a 400 error carrying the structured list of field
// violations in details.
func Validation(details any) *Error {
	return &Error{
		Message: "validation failed",
		Code:    CodeValidation,
		Details: details,
	}
}

// Unauthorized returns a 401 error for missing or invalid credentials.
func Unauthorized() *Error {
	return &Error{
		Message: "authentication required",
		Code:    CodeUnauthorized,
	}
}

// Forbidden returns a 403 error for an authenticated caller whose role
// is not allowed.
func Forbidden() *Error {
	return &Error{
		Message: "access denied",
		Code:    CodeForbidden,
	}
}

// NotFound returns a 404 error.
func NotFound(message string) *Error {
	if message == "" {
		message = "resource not found"
	}
	return &Error{
		Message: message,
		Code:    CodeNotFound,
	}
}

// MethodNotAllowed returns a 405 error.
func MethodNotAllowed() *Error {
	return &Error{
		Message: "method not allowed",
		Code:    CodeMethodNotAllowed,
	}
}

// RateLimited returns a 429 error.
func RateLimited() *Error {
	return &Error{
		Message: "too many requests, please try again later",
		Code:    CodeRateLimited,
	}
}

// Internal returns a 500 error. details should only be populated outside
// production; callers pass nil to suppress diagnostics.
func Internal(details any) *Error {
	return &Error{
		Message: "an unexpected error occurred",
		Code:    CodeInternal,
		Details: details,
	}
}
