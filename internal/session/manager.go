// Package session owns the registry of per-owner work sessions: creation,
// lookup, activity tracking, expiry, and recovery across restarts.
//
// Lock discipline: the registry map is guarded by a short-held mutex used
// only for insert/remove/lookup. Each session additionally has its own
// mutex; every state transition for a given session is linearized through
// it, so distinct sessions proceed fully in parallel. Neither lock is ever
// held across a command execution.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/telecode/internal/types"
)

// Manager owns the in-memory session registry and writes changes through to
// the store. Memory is the source of truth for serving requests; disk is a
// recovery log.
type Manager struct {
	store  types.SessionStore
	root   string
	window time.Duration

	mu       sync.Mutex
	sessions map[types.SessionID]*types.Session
	byOwner  map[types.OwnerID]types.SessionID
	locks    map[types.SessionID]*sync.Mutex
}

// NewManager creates a Manager persisting through store, resolving default
// working directories under root, with the given inactivity window.
func NewManager(store types.SessionStore, root string, window time.Duration) *Manager {
	return &Manager{
		store:    store,
		root:     root,
		window:   window,
		sessions: make(map[types.SessionID]*types.Session),
		byOwner:  make(map[types.OwnerID]types.SessionID),
		locks:    make(map[types.SessionID]*sync.Mutex),
	}
}

// Restore repopulates the registry from the store. Sessions already past
// the inactivity window are marked expired immediately rather than treated
// as active.
func (m *Manager) Restore(ctx context.Context) error {
	stored, err := m.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []*types.Session
	for _, sess := range stored {
		if sess.State == types.SessionActive && sess.IdleLongerThan(m.window, now) {
			sess.State = types.SessionExpired
			stale = append(stale, sess)
		}
		m.sessions[sess.ID] = sess
		m.locks[sess.ID] = &sync.Mutex{}
		if sess.State == types.SessionActive {
			m.byOwner[sess.Owner] = sess.ID
		}
	}

	for _, sess := range stale {
		if err := m.store.Save(ctx, sess); err != nil {
			slog.Warn("persist expired session on restore", "session_id", sess.ID, "error", err)
		}
	}

	slog.Info("sessions restored", "total", len(stored), "active", len(m.byOwner), "expired_on_load", len(stale))
	return nil
}

// resolveDir validates an explicit working directory, or builds the
// per-owner default under the workspace root. The default is created on
// demand since the manager owns that tree; an explicit override must
// already exist and be a directory.
func (m *Manager) resolveDir(owner types.OwnerID, override string) (string, error) {
	if override == "" {
		dir := filepath.Join(m.root, owner.String())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("%w: create %s: %v", ErrInvalidDirectory, dir, err)
		}
		return dir, nil
	}

	abs, err := filepath.Abs(override)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidDirectory, override)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidDirectory, abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidDirectory, abs)
	}
	return abs, nil
}

// Create starts a new active session for the owner, ending any prior active
// session so at most one session per owner is active at a time. The new
// record is persisted before the prior session is touched, so a failed
// create leaves the owner's existing session intact.
func (m *Manager) Create(ctx context.Context, owner types.OwnerID, overrideDir string) (*types.Session, error) {
	dir, err := m.resolveDir(owner, overrideDir)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &types.Session{
		ID:           types.NewSessionID(),
		Owner:        owner,
		WorkingDir:   dir,
		State:        types.SessionActive,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Snapshot for the caller before the session becomes visible to other
	// goroutines; once inserted, its fields belong to the lock discipline.
	out := m.clone(sess)

	m.mu.Lock()
	priorID, hasPrior := m.byOwner[owner]
	m.sessions[sess.ID] = sess
	m.byOwner[owner] = sess.ID
	m.locks[sess.ID] = &sync.Mutex{}
	m.mu.Unlock()

	// The insert displaced the owner's prior mapping; transition the
	// displaced session through its own lock like every other state change.
	// Under concurrent creates each insert displaces exactly the session it
	// replaced, so the last inserter is the one left active.
	if hasPrior && priorID != sess.ID {
		if err := m.End(ctx, priorID); err != nil && !errors.Is(err, ErrNotFound) {
			slog.Warn("end displaced session", "session_id", priorID, "error", err)
		}
	}

	slog.Info("session created", "session_id", sess.ID, "owner", owner, "working_dir", dir)
	return out, nil
}

// Get returns the owner's active session. A session found past the
// inactivity window transitions to expired exactly once and is reported as
// not found.
func (m *Manager) Get(ctx context.Context, owner types.OwnerID) (*types.Session, error) {
	m.mu.Lock()
	id, ok := m.byOwner[owner]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var out *types.Session
	err := m.withSession(id, func(sess *types.Session) error {
		if sess.State != types.SessionActive {
			return ErrNotFound
		}
		if sess.IdleLongerThan(m.window, time.Now()) {
			m.expireLocked(ctx, sess)
			return ErrNotFound
		}
		out = m.clone(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Touch updates the session's last-activity timestamp. Activity tracking is
// best-effort: a touch on a non-active session or a failed persist is
// logged, never fatal.
func (m *Manager) Touch(ctx context.Context, id types.SessionID) {
	err := m.withSession(id, func(sess *types.Session) error {
		if sess.State != types.SessionActive {
			slog.Warn("touch on non-active session", "session_id", id, "state", sess.State)
			return nil
		}
		sess.LastActiveAt = time.Now()
		if err := m.store.Save(ctx, sess); err != nil {
			slog.Warn("persist session touch", "session_id", id, "error", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("touch on unknown session", "session_id", id)
	}
}

// End transitions the session to ended and persists the record. An in-flight
// execution is not killed; it finishes or times out on its own, and later
// requests for the session fail with ErrNotFound.
func (m *Manager) End(ctx context.Context, id types.SessionID) error {
	return m.withSession(id, func(sess *types.Session) error {
		if sess.State != types.SessionActive {
			return ErrNotFound
		}
		sess.State = types.SessionEnded

		m.mu.Lock()
		if m.byOwner[sess.Owner] == id {
			delete(m.byOwner, sess.Owner)
		}
		m.mu.Unlock()

		if err := m.store.Save(ctx, sess); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		slog.Info("session ended", "session_id", id, "owner", sess.Owner)
		return nil
	})
}

// ListActive returns the active sessions ordered by last activity,
// most recent first.
func (m *Manager) ListActive() []*types.Session {
	m.mu.Lock()
	ids := make([]types.SessionID, 0, len(m.byOwner))
	for _, id := range m.byOwner {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	out := make([]*types.Session, 0, len(ids))
	for _, id := range ids {
		m.withSession(id, func(sess *types.Session) error {
			if sess.State == types.SessionActive {
				out = append(out, m.clone(sess))
			}
			return nil
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out
}

// SweepExpired transitions every active session past the inactivity window
// to expired and returns how many were swept. Intended for a periodic job;
// Get performs the same check lazily.
func (m *Manager) SweepExpired(ctx context.Context) int {
	m.mu.Lock()
	ids := make([]types.SessionID, 0, len(m.byOwner))
	for _, id := range m.byOwner {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	swept := 0
	now := time.Now()
	for _, id := range ids {
		m.withSession(id, func(sess *types.Session) error {
			if sess.State == types.SessionActive && sess.IdleLongerThan(m.window, now) {
				m.expireLocked(ctx, sess)
				swept++
			}
			return nil
		})
	}
	return swept
}

// expireLocked transitions an active session to expired. Caller holds the
// session's lock.
func (m *Manager) expireLocked(ctx context.Context, sess *types.Session) {
	sess.State = types.SessionExpired

	m.mu.Lock()
	if m.byOwner[sess.Owner] == sess.ID {
		delete(m.byOwner, sess.Owner)
	}
	m.mu.Unlock()

	// Expiry is re-derivable from timestamps on the next load, so a failed
	// persist here is logged rather than surfaced.
	if err := m.store.Save(ctx, sess); err != nil {
		slog.Warn("persist expired session", "session_id", sess.ID, "error", err)
	}
	slog.Info("session expired", "session_id", sess.ID, "owner", sess.Owner)
}

// withSession runs fn with the session's lock held. The registry mutex is
// released before the session lock is taken, so there is no hold-and-wait
// between the two.
func (m *Manager) withSession(id types.SessionID, fn func(*types.Session) error) error {
	m.mu.Lock()
	sess := m.sessions[id]
	lock := m.locks[id]
	m.mu.Unlock()

	if sess == nil || lock == nil {
		return ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()
	return fn(sess)
}

// clone returns a caller-owned copy so registry state is never mutated or
// read outside the lock discipline.
func (m *Manager) clone(sess *types.Session) *types.Session {
	copied := *sess
	return &copied
}
