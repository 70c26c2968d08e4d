// internal/types/ids.go
package types

import (
	"strconv"

	"github.com/google/uuid"
)

type SessionID string

// OwnerID is the numeric principal assigned by the chat transport.
type OwnerID int64

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func (o OwnerID) String() string {
	return strconv.FormatInt(int64(o), 10)
}
