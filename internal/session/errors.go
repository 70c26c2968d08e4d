package session

import "errors"

var (
	// ErrNotFound means the owner has no active session, or the session ID
	// refers to a session in a terminal state.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidDirectory means the requested working directory does not
	// exist or is not a directory.
	ErrInvalidDirectory = errors.New("invalid working directory")

	// ErrStorage wraps persistence failures on create and end paths.
	ErrStorage = errors.New("session storage failure")
)
