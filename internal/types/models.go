// internal/types/models.go
package types

import (
	"time"
)

// SessionState is the lifecycle state of a session. Terminal states
// (expired, ended) are never reused; a new session gets a new ID.
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionExpired SessionState = "expired"
	SessionEnded   SessionState = "ended"
)

// Session ties one owner to one working directory and one execution slot.
type Session struct {
	ID           SessionID    `json:"id"`
	Owner        OwnerID      `json:"owner"`
	WorkingDir   string       `json:"working_dir"`
	State        SessionState `json:"state"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActiveAt time.Time    `json:"last_active_at"`
}

// IdleLongerThan reports whether the session has been idle past the given
// inactivity window as of now.
func (s *Session) IdleLongerThan(window time.Duration, now time.Time) bool {
	return now.Sub(s.LastActiveAt) > window
}

// TimeoutExitCode is the sentinel exit code reported when a command was
// killed by the wall-clock timeout.
const TimeoutExitCode = -1

// CommandResult is the outcome of one command execution. It is owned by the
// caller that requested the execution and is never shared.
type CommandResult struct {
	ExitCode   int
	TimedOut   bool
	Stdout     string
	Stderr     string
	DurationMs int64
}
