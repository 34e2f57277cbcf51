package domain

import "errors"

var (
	// ErrInvalidToken covers malformed, forged and expired bearer tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnauthenticated is returned when an operation needs a caller identity and none resolves.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials is shared by unknown email and wrong password on purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateRole      = errors.New("user already has this role")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidRole        = errors.New("invalid role name")
	ErrInvalidInput       = errors.New("invalid input")
)
