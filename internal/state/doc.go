// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/telecode/internal/types"

// Compile-time interface compliance check.
var _ types.SessionStore = (*FileStore)(nil)
