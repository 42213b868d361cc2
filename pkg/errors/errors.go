package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application. Messages are the
// exact strings presented to clients; raw remote-system error text never
// appears here.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidSession = &AppError{
		Code:       "INVALID_SESSION",
		Message:    "Invalid session",
		StatusCode: http.StatusUnauthorized,
	}

	ErrSessionExpired = &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "Session expired",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidAdminCredentials = &AppError{
		Code:       "INVALID_ADMIN_CREDENTIALS",
		Message:    "Invalid admin credentials",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid username or password",
		StatusCode: http.StatusUnauthorized,
	}

	ErrLoginFailed = &AppError{
		Code:       "LOGIN_FAILED",
		Message:    "We couldn't sign you in. Please try again or contact your administrator.",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrAdminRequired = &AppError{
		Code:       "ADMIN_REQUIRED",
		Message:    "Admin access required",
		StatusCode: http.StatusForbidden,
	}

	ErrOrgUserRequired = &AppError{
		Code:       "ORG_USER_REQUIRED",
		Message:    "Org user required",
		StatusCode: http.StatusForbidden,
	}

	ErrLicenseInactive = &AppError{
		Code:       "LICENSE_INACTIVE",
		Message:    "License inactive or expired",
		StatusCode: http.StatusForbidden,
	}

	ErrUserNotAllowed = &AppError{
		Code:       "USER_NOT_ALLOWED",
		Message:    "User not allowed for this company",
		StatusCode: http.StatusForbidden,
	}

	ErrFeatureDisabled = &AppError{
		Code:       "FEATURE_DISABLED",
		Message:    "Feature not enabled",
		StatusCode: http.StatusForbidden,
	}

	ErrUnknownLoginCode = &AppError{
		Code:       "UNKNOWN_LOGIN_CODE",
		Message:    "Unknown company code",
		StatusCode: http.StatusNotFound,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrRemoteUnavailable = &AppError{
		Code:       "REMOTE_UNAVAILABLE",
		Message:    "The connected system is temporarily unavailable. Please retry later or contact your administrator.",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
