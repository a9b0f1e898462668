package theme

import "errors"

// Domain errors for theme operations

var (
	// Input validation errors
	ErrInvalidPreference       = errors.New("theme must be one of light, dark or auto")
	ErrInvalidSystemPreference = errors.New("color scheme must be one of light, dark or unknown")

	// Session errors
	ErrSessionNotFound = errors.New("theme session not found")
	ErrSessionClosed   = errors.New("theme session is closed")
)
