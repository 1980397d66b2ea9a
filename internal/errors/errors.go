// Package errors defines the AppError sentinels returned by services.
// Handlers turn them into the {success, message, code} envelope; the
// Internal cause is logged and never sent to the client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a stable code and the HTTP status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Internal }

// Is matches any AppError with the same code, so copies made by Wrap and
// WithMessage still satisfy errors.Is against their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap copies sentinel and attaches the underlying cause.
func Wrap(sentinel *AppError, internal error) *AppError {
	e := *sentinel
	e.Internal = internal
	return &e
}

// WithMessage copies sentinel with a client-facing message.
func WithMessage(sentinel *AppError, message string) *AppError {
	e := *sentinel
	e.Message = message
	return &e
}

// Newf is WithMessage with formatting.
func Newf(sentinel *AppError, format string, args ...interface{}) *AppError {
	return WithMessage(sentinel, fmt.Sprintf(format, args...))
}

// Resolve finds the AppError in err's chain. Anything else becomes
// ErrInternalServer and ok is false.
func Resolve(err error) (appErr *AppError, ok bool) {
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return Wrap(ErrInternalServer, err), false
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid username or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "A user with this username already exists", StatusCode: http.StatusConflict}
	ErrInvalidRole       = &AppError{Code: "INVALID_ROLE", Message: "Role must be 1 (admin) or 2 (editor)", StatusCode: http.StatusBadRequest}
)

// Change workflow errors.
var (
	ErrChangeNotFound       = &AppError{Code: "CHANGE_NOT_FOUND", Message: "Change request not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransition    = &AppError{Code: "INVALID_TRANSITION", Message: "Action is not allowed from the current status", StatusCode: http.StatusBadRequest}
	ErrChangePublished      = &AppError{Code: "CHANGE_PUBLISHED", Message: "Published change requests cannot be modified", StatusCode: http.StatusBadRequest}
	ErrNotAdmin             = &AppError{Code: "NOT_ADMIN", Message: "action failed because initiating user was not admin", StatusCode: http.StatusForbidden}
	ErrNotClaimant          = &AppError{Code: "NOT_CLAIMANT", Message: "action failed because initiating user was not the claiming user", StatusCode: http.StatusForbidden}
	ErrConcurrentTransition = &AppError{Code: "CONCURRENT_TRANSITION", Message: "Change request was modified by another request", StatusCode: http.StatusConflict}
	ErrValidationFailed     = &AppError{Code: "VALIDATION_FAILED", Message: "Change payload failed validation", StatusCode: http.StatusBadRequest}
)

// Content type errors.
var (
	ErrUnknownModel  = &AppError{Code: "UNKNOWN_MODEL", Message: "Unknown model", StatusCode: http.StatusBadRequest}
	ErrObjectMissing = &AppError{Code: "OBJECT_NOT_FOUND", Message: "Target object not found", StatusCode: http.StatusNotFound}
)

// Recommendation errors.
var (
	ErrRecommendationNotFound  = &AppError{Code: "RECOMMENDATION_NOT_FOUND", Message: "Recommendation not found", StatusCode: http.StatusNotFound}
	ErrDuplicateRecommendation = &AppError{Code: "DUPLICATE_RECOMMENDATION", Message: "A recommendation for this object already exists on the change", StatusCode: http.StatusConflict}
)

// External service errors.
var (
	ErrUpstream            = &AppError{Code: "UPSTREAM_ERROR", Message: "External service request failed", StatusCode: http.StatusBadGateway}
	ErrDeployNotConfigured = &AppError{Code: "DEPLOY_NOT_CONFIGURED", Message: "Deploy workflow is not configured", StatusCode: http.StatusServiceUnavailable}
)
