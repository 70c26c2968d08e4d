// internal/state/store.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/telecode/internal/types"
)

// FileStore is a JSON-file-backed session store. All session records live in
// a single sessions.json under the data directory; writes go through a temp
// file and rename so a crash never leaves a torn file behind.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed FileStore rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path() string {
	return filepath.Join(s.root, "sessions.json")
}

// load reads sessions.json and returns a map keyed by session ID.
func (s *FileStore) load() (map[types.SessionID]*types.Session, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.SessionID]*types.Session), nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var sessions []*types.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal sessions: %w", err)
	}

	index := make(map[types.SessionID]*types.Session, len(sessions))
	for _, sess := range sessions {
		index[sess.ID] = sess
	}
	return index, nil
}

// write converts the map to a slice, marshals with indentation, and writes
// atomically.
func (s *FileStore) write(index map[types.SessionID]*types.Session) error {
	sessions := make([]*types.Session, 0, len(index))
	for _, sess := range index {
		sessions = append(sessions, sess)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp session file: %w", err)
	}
	return nil
}

// Save upserts the session record keyed by its ID.
func (s *FileStore) Save(_ context.Context, session *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return err
	}

	copied := *session
	index[session.ID] = &copied

	return s.write(index)
}

// LoadAll returns every persisted session record.
func (s *FileStore) LoadAll(_ context.Context) ([]*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return nil, err
	}

	sessions := make([]*types.Session, 0, len(index))
	for _, sess := range index {
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Delete removes the session record with the given ID. Deleting a missing
// record is not an error.
func (s *FileStore) Delete(_ context.Context, id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := index[id]; !ok {
		return nil
	}
	delete(index, id)

	return s.write(index)
}
