package lua

import "errors"

// Errors for session operations.
var (
	// ErrSessionClosed is returned when operating on a closed session.
	ErrSessionClosed = errors.New("lua session is closed")

	// ErrNotCallable is returned when invoking a nil callable handle.
	ErrNotCallable = errors.New("value is not callable")
)
