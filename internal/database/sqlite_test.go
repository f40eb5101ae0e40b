package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"workspaces/internal/database/migrations"
	"workspaces/internal/model"
	"workspaces/internal/workspace"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := migrations.Upgrade(db, ":memory:", time.Now()); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	store := NewSQLiteStoreFromDB(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreate(t *testing.T, store *SQLiteStore, filesystem, owner, name string, expires time.Time) *model.Workspace {
	t.Helper()

	ws := &model.Workspace{Filesystem: filesystem, Owner: owner, Name: name, ExpiresAt: expires}
	if err := store.CreateWorkspace(context.Background(), ws, expires.Add(-10*24*time.Hour)); err != nil {
		t.Fatalf("CreateWorkspace(%s/%s/%s) error = %v", filesystem, owner, name, err)
	}
	return ws
}

func TestCreateWorkspace(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("round-trips the row", func(t *testing.T) {
		store := newTestStore(t)
		created := mustCreate(t, store, "scratch", "alice", "proj", expires)

		if created.ID == 0 {
			t.Error("ID was not set")
		}
		ws, err := store.FindWorkspace(ctx, "scratch", "alice", "proj")
		if err != nil {
			t.Fatalf("FindWorkspace() error = %v", err)
		}
		if ws == nil {
			t.Fatal("FindWorkspace() = nil")
		}
		if ws.ID != created.ID {
			t.Errorf("ID = %d, want %d", ws.ID, created.ID)
		}
		if !ws.ExpiresAt.Equal(expires) {
			t.Errorf("ExpiresAt = %v, want %v", ws.ExpiresAt, expires)
		}
	})

	t.Run("seeds the notification log", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		entries, err := store.Notifications(ctx, ws.ID)
		if err != nil {
			t.Fatalf("Notifications() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("log has %d entries, want 1", len(entries))
		}
	})

	t.Run("duplicate triple", func(t *testing.T) {
		store := newTestStore(t)
		mustCreate(t, store, "scratch", "alice", "proj", expires)

		dup := &model.Workspace{Filesystem: "scratch", Owner: "alice", Name: "proj", ExpiresAt: expires}
		err := store.CreateWorkspace(ctx, dup, expires)
		if !errors.Is(err, workspace.ErrWorkspaceExists) {
			t.Errorf("CreateWorkspace() error = %v, want ErrWorkspaceExists", err)
		}
	})

	t.Run("same name for different owners", func(t *testing.T) {
		store := newTestStore(t)
		mustCreate(t, store, "scratch", "alice", "proj", expires)
		mustCreate(t, store, "scratch", "bob", "proj", expires)
	})
}

func TestExpireWorkspace(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("lowers but never raises", func(t *testing.T) {
		store := newTestStore(t)
		mustCreate(t, store, "scratch", "alice", "proj", expires)

		earlier := expires.Add(-5 * 24 * time.Hour)
		ws, err := store.ExpireWorkspace(ctx, "scratch", "alice", "proj", earlier, earlier)
		if err != nil {
			t.Fatalf("ExpireWorkspace() error = %v", err)
		}
		if !ws.ExpiresAt.Equal(earlier) {
			t.Errorf("ExpiresAt = %v, want %v", ws.ExpiresAt, earlier)
		}

		ws, err = store.ExpireWorkspace(ctx, "scratch", "alice", "proj", expires, expires)
		if err != nil {
			t.Fatalf("second ExpireWorkspace() error = %v", err)
		}
		if !ws.ExpiresAt.Equal(earlier) {
			t.Errorf("ExpiresAt = %v, want it to stay %v", ws.ExpiresAt, earlier)
		}
	})

	t.Run("appends a silence entry", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		now := expires.Add(-2 * 24 * time.Hour)
		if _, err := store.ExpireWorkspace(ctx, "scratch", "alice", "proj", now, now); err != nil {
			t.Fatalf("ExpireWorkspace() error = %v", err)
		}
		entries, _ := store.Notifications(ctx, ws.ID)
		if len(entries) != 2 {
			t.Errorf("log has %d entries, want 2", len(entries))
		}
	})

	t.Run("unknown workspace", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.ExpireWorkspace(ctx, "scratch", "alice", "ghost", expires, expires)
		if !errors.Is(err, workspace.ErrWorkspaceNotFound) {
			t.Errorf("ExpireWorkspace() error = %v, want ErrWorkspaceNotFound", err)
		}
	})
}

func TestExtendWorkspace(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("raises but never lowers", func(t *testing.T) {
		store := newTestStore(t)
		mustCreate(t, store, "scratch", "alice", "proj", expires)

		later := expires.Add(10 * 24 * time.Hour)
		now := expires.Add(-1 * 24 * time.Hour)
		ws, err := store.ExtendWorkspace(ctx, "scratch", "alice", "proj", later, now, false)
		if err != nil {
			t.Fatalf("ExtendWorkspace() error = %v", err)
		}
		if !ws.ExpiresAt.Equal(later) {
			t.Errorf("ExpiresAt = %v, want %v", ws.ExpiresAt, later)
		}

		ws, err = store.ExtendWorkspace(ctx, "scratch", "alice", "proj", expires, now, false)
		if err != nil {
			t.Fatalf("second ExtendWorkspace() error = %v", err)
		}
		if !ws.ExpiresAt.Equal(later) {
			t.Errorf("ExpiresAt = %v, want it to stay %v", ws.ExpiresAt, later)
		}
	})

	t.Run("prunes future silence entries", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		// An immediate expire writes a silence entry dated in the future
		// relative to a later extend.
		future := expires.Add(30 * 24 * time.Hour)
		if _, err := store.ExpireWorkspace(ctx, "scratch", "alice", "proj", expires, future); err != nil {
			t.Fatalf("ExpireWorkspace() error = %v", err)
		}

		now := expires.Add(-1 * 24 * time.Hour)
		if _, err := store.ExtendWorkspace(ctx, "scratch", "alice", "proj", expires, now, false); err != nil {
			t.Fatalf("ExtendWorkspace() error = %v", err)
		}
		entries, _ := store.Notifications(ctx, ws.ID)
		if len(entries) != 1 {
			t.Errorf("log has %d entries, want only the creation seed", len(entries))
		}
	})

	t.Run("acknowledge appends an entry", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		now := expires.Add(-1 * 24 * time.Hour)
		if _, err := store.ExtendWorkspace(ctx, "scratch", "alice", "proj", expires.Add(24*time.Hour), now, true); err != nil {
			t.Fatalf("ExtendWorkspace() error = %v", err)
		}
		entries, _ := store.Notifications(ctx, ws.ID)
		if len(entries) != 2 {
			t.Errorf("log has %d entries, want 2", len(entries))
		}
	})
}

func TestRenameWorkspace(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("renames in place", func(t *testing.T) {
		store := newTestStore(t)
		mustCreate(t, store, "scratch", "alice", "old", expires)

		if err := store.RenameWorkspace(ctx, "scratch", "alice", "old", "new"); err != nil {
			t.Fatalf("RenameWorkspace() error = %v", err)
		}
		if ws, _ := store.FindWorkspace(ctx, "scratch", "alice", "old"); ws != nil {
			t.Error("old name still present")
		}
		if ws, _ := store.FindWorkspace(ctx, "scratch", "alice", "new"); ws == nil {
			t.Error("new name missing")
		}
	})

	t.Run("destination taken", func(t *testing.T) {
		store := newTestStore(t)
		mustCreate(t, store, "scratch", "alice", "one", expires)
		mustCreate(t, store, "scratch", "alice", "two", expires)

		err := store.RenameWorkspace(ctx, "scratch", "alice", "one", "two")
		if !errors.Is(err, workspace.ErrWorkspaceExists) {
			t.Errorf("RenameWorkspace() error = %v, want ErrWorkspaceExists", err)
		}
		if ws, _ := store.FindWorkspace(ctx, "scratch", "alice", "one"); ws == nil {
			t.Error("source row must be untouched after a conflict")
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		store := newTestStore(t)

		err := store.RenameWorkspace(ctx, "scratch", "alice", "ghost", "new")
		if !errors.Is(err, workspace.ErrWorkspaceNotFound) {
			t.Errorf("RenameWorkspace() error = %v, want ErrWorkspaceNotFound", err)
		}
	})
}

func TestSweepTx(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("snapshot and commit", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		tx, err := store.BeginSweep(ctx)
		if err != nil {
			t.Fatalf("BeginSweep() error = %v", err)
		}
		if got := tx.Workspaces(); len(got) != 1 || got[0].ID != ws.ID {
			t.Fatalf("Workspaces() = %+v, want the one created row", got)
		}

		at := expires.Add(-1 * 24 * time.Hour)
		if err := tx.RecordNotification(ws.ID, at); err != nil {
			t.Fatalf("RecordNotification() error = %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Errorf("Rollback() after Commit error = %v", err)
		}

		entries, _ := store.Notifications(ctx, ws.ID)
		if len(entries) != 2 {
			t.Errorf("log has %d entries, want 2", len(entries))
		}
	})

	t.Run("rollback discards mutations", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		tx, err := store.BeginSweep(ctx)
		if err != nil {
			t.Fatalf("BeginSweep() error = %v", err)
		}
		if err := tx.RecordNotification(ws.ID, expires); err != nil {
			t.Fatalf("RecordNotification() error = %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}

		entries, _ := store.Notifications(ctx, ws.ID)
		if len(entries) != 1 {
			t.Errorf("log has %d entries, want only the creation seed", len(entries))
		}
	})

	t.Run("last notification", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		tx, err := store.BeginSweep(ctx)
		if err != nil {
			t.Fatalf("BeginSweep() error = %v", err)
		}
		defer tx.Rollback()

		last, err := tx.LastNotification(ws.ID)
		if err != nil {
			t.Fatalf("LastNotification() error = %v", err)
		}
		if last == nil {
			t.Fatal("LastNotification() = nil, want the creation seed")
		}
		if want := expires.Add(-10 * 24 * time.Hour); !last.Equal(want) {
			t.Errorf("LastNotification() = %v, want %v", last, want)
		}

		if last, err := tx.LastNotification(9999); err != nil || last != nil {
			t.Errorf("LastNotification(unknown) = %v, %v, want nil, nil", last, err)
		}
	})

	t.Run("delete cascades to the log", func(t *testing.T) {
		store := newTestStore(t)
		ws := mustCreate(t, store, "scratch", "alice", "proj", expires)

		tx, err := store.BeginSweep(ctx)
		if err != nil {
			t.Fatalf("BeginSweep() error = %v", err)
		}
		if err := tx.DeleteWorkspace(ws.ID); err != nil {
			t.Fatalf("DeleteWorkspace() error = %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		if got, _ := store.FindWorkspace(ctx, "scratch", "alice", "proj"); got != nil {
			t.Error("row still present")
		}
		entries, _ := store.Notifications(ctx, ws.ID)
		if len(entries) != 0 {
			t.Errorf("log has %d orphaned entries, want 0", len(entries))
		}
	})
}

func TestListWorkspaces(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	store := newTestStore(t)
	mustCreate(t, store, "scratch", "bob", "b", expires)
	mustCreate(t, store, "archive", "alice", "z", expires)
	mustCreate(t, store, "scratch", "alice", "a", expires)

	list, err := store.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("ListWorkspaces() error = %v", err)
	}
	var got []string
	for _, ws := range list {
		got = append(got, ws.Filesystem+"/"+ws.Owner+"/"+ws.Name)
	}
	want := []string{"archive/alice/z", "scratch/alice/a", "scratch/bob/b"}
	if len(got) != len(want) {
		t.Fatalf("ListWorkspaces() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
