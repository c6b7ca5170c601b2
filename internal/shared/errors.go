package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict, e.g. a taken username.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates a malformed or incomplete request payload.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the principal lacks a required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken indicates a malformed, tampered or incomplete token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates a token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
