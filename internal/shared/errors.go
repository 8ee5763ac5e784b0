package shared

import "errors"

var (
	// ErrInvalidCredentials indicates a rejected operator sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when no CSRF token accompanies a request.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when the token does not belong to the session.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
