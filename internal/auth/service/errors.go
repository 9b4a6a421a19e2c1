package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation means required input was missing or malformed.
	ErrValidation = errors.New("validation failed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrAccountLocked      = errors.New("account is temporarily locked")

	ErrTokenInvalidOrExpired = errors.New("token is invalid or expired")
	ErrInvalidToken          = errors.New("invalid token")
	ErrPrincipalNotFound     = errors.New("principal not found")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrCodeExpired           = errors.New("verification code expired")

	ErrNotificationDeliveryFailed = errors.New("failed to deliver verification code")

	// ErrUnauthorized covers every Access Guard rejection.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPendingSecondFactor is the guard rejection for a token that has
	// only passed the password step.
	ErrPendingSecondFactor = fmt.Errorf("%w: second factor verification required", ErrUnauthorized)

	ErrForbidden  = errors.New("forbidden")
	ErrEmailTaken = errors.New("email already in use")

	ErrBootstrapDisabled     = errors.New("bootstrap is disabled")
	ErrBootstrapUnauthorized = errors.New("unauthorized bootstrap attempt")
	ErrBootstrapAlready      = errors.New("system already bootstrapped")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
