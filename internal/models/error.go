package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login outcomes
	ErrInvalidCredentials = errors.New("wrong email or password")
	ErrRateLimitExceeded  = errors.New("too many failed login attempts")
)
