package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication state errors
	ErrAccountLocked   = errors.New("account is temporarily locked")
	ErrMFARequired     = errors.New("multi-factor code required")
	ErrMFAInvalidCode  = errors.New("invalid multi-factor code")
	ErrMFANotEnrolled  = errors.New("multi-factor authentication not enrolled")
	ErrPasswordExpired = errors.New("password has expired")
)
