// internal/state/store_test.go
package state

import (
	"context"
	"testing"
	"time"

	"github.com/user/telecode/internal/types"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	sess := &types.Session{
		ID:           types.NewSessionID(),
		Owner:        42,
		WorkingDir:   "/work/42",
		State:        types.SessionActive,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	// Simulated restart: a fresh store over the same directory
	restored := NewFileStore(dir)
	all, err := restored.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 session, got %d", len(all))
	}
	got := all[0]
	if got.ID != sess.ID || got.Owner != 42 || got.WorkingDir != "/work/42" {
		t.Errorf("restored session mismatch: %+v", got)
	}
	if got.State != types.SessionActive {
		t.Errorf("expected active state, got %s", got.State)
	}
	if !got.LastActiveAt.Equal(sess.LastActiveAt) {
		t.Errorf("expected last active %v, got %v", sess.LastActiveAt, got.LastActiveAt)
	}
}

func TestFileStoreSaveUpserts(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	sess := &types.Session{ID: "abc", Owner: 1, State: types.SessionActive}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sess.State = types.SessionEnded
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	all, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 session after upsert, got %d", len(all))
	}
	if all[0].State != types.SessionEnded {
		t.Errorf("expected ended state, got %s", all[0].State)
	}
}

func TestFileStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	if err := store.Save(ctx, &types.Session{ID: "abc", Owner: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	// Deleting again is a no-op
	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatal(err)
	}

	all, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty store, got %d sessions", len(all))
	}
}

func TestFileStoreEmptyDir(t *testing.T) {
	store := NewFileStore(t.TempDir())
	all, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("expected no sessions in empty dir, got %d", len(all))
	}
}
