package hmsAuth

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/hmsAuth/permission"
)

var (
	// ErrValidationFailed is returned for malformed requests.
	ErrValidationFailed = errors.New("validation failed")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when the target record does not exist or is
	// outside the caller's tenant.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is matched by *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned for deactivated principals.
	ErrAccountInactive = errors.New("account inactive")
	// ErrEmailNotVerified is returned for administrators who have not
	// completed email verification.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrTenantInactive is returned when the principal's tenant is not active.
	ErrTenantInactive = errors.New("tenant inactive")
	// ErrInvalidToken is returned for bad verification codes and session tokens.
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	// ErrTooManyAttempts is returned once a verification code is blocked.
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrAlreadyVerified = errors.New("already verified")
	// ErrForbidden is matched by *permission.ForbiddenError.
	ErrForbidden              = permission.ErrForbidden
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrInvalidCurrentPassword = errors.New("invalid current password")
	// ErrEmailDispatchFailed is returned after the email could not be sent
	// and the operation was rolled back.
	ErrEmailDispatchFailed = errors.New("email dispatch failed")
	// ErrUnexpected hides backend failures from callers. Details are logged.
	ErrUnexpected = errors.New("unexpected error")
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AccountLockedError reports how long a locked account stays locked.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// ConflictError names the field that collided.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s already in use", e.Field)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError names the rejected field and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
