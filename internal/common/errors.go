package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorValidation    = errors.New("validation error")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Remote store errors. Both the transport (client side) and the record
// store (server side) speak in these values; the sync engine classifies
// them, see syncengine.Classify.
var (
	ErrUnavailable     = errors.New("remote store unavailable")
	ErrBusy            = errors.New("remote store busy")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrCancelled       = errors.New("operation cancelled")
	ErrZoneNotFound    = errors.New("zone not found")
	ErrConflict        = errors.New("record changed on server")
	ErrNotFound        = errors.New("record not found")
	ErrCursorExpired   = errors.New("change cursor expired")
	ErrAccountChanged  = errors.New("account changed")
)
