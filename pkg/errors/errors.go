package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrConflict
	ErrInvalidTransition
	ErrGuardFailed
	ErrInvalidState
	ErrTenantViolation
	ErrInternal
)

// StatusCode maps the error code to an HTTP status. Tenant violations
// deliberately map to 404: existence of rows in another tenant must not
// leak to the caller.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound, ErrTenantViolation:
		return http.StatusNotFound
	case ErrBadRequest, ErrInvalidTransition:
		return http.StatusBadRequest
	case ErrConflict, ErrGuardFailed, ErrInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// SlotConflict signals a lost race for a slot. Expected under
// contention and retryable against a different slot.
func SlotConflict(slotID string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: fmt.Sprintf("slot %s is no longer available", slotID),
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

// InvalidTransition signals that the target state is not reachable from
// the current state. Not retryable.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// GuardFailed signals a table-valid transition rejected by a business
// rule. The reason is returned to the caller verbatim.
func GuardFailed(reason string) *AppError {
	return &AppError{
		Code:    ErrGuardFailed,
		Message: reason,
	}
}

func InvalidState(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidState,
		Message: message,
	}
}

// TenantViolation is always a defect: an operation reached for a row
// outside the caller's tenant. It surfaces to callers as not-found.
func TenantViolation(detail string) *AppError {
	return &AppError{
		Code:    ErrTenantViolation,
		Message: detail,
	}
}

// Code extracts the ErrorCode from err, unwrapping as needed.
// Returns ErrInternal for non-application errors.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return Code(err) == code
}
