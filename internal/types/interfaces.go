// internal/types/interfaces.go
package types

import (
	"context"
)

// SessionStore persists session records durably. Writes are small and
// infrequent; a single writer at a time is sufficient.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	LoadAll(ctx context.Context) ([]*Session, error)
	Delete(ctx context.Context, id SessionID) error
}
