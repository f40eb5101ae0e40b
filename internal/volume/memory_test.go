package volume

import (
	"context"
	"testing"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("create and default properties", func(t *testing.T) {
		m := NewMemory()

		if err := m.Create(ctx, "tank/scratch/alice/proj"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		mp, err := m.GetProperty(ctx, "tank/scratch/alice/proj", "mountpoint")
		if err != nil {
			t.Fatalf("GetProperty() error = %v", err)
		}
		if mp != "/tank/scratch/alice/proj" {
			t.Errorf("mountpoint = %q", mp)
		}
		ro, _ := m.GetProperty(ctx, "tank/scratch/alice/proj", "readonly")
		if ro != "off" {
			t.Errorf("readonly = %q, want off", ro)
		}
	})

	t.Run("create twice", func(t *testing.T) {
		m := NewMemory()

		if err := m.Create(ctx, "tank/a"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := m.Create(ctx, "tank/a"); err == nil {
			t.Error("second Create() = nil, want an error")
		}
	})

	t.Run("destroy is idempotent", func(t *testing.T) {
		m := NewMemory()

		if err := m.Create(ctx, "tank/a"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := m.Destroy(ctx, "tank/a"); err != nil {
			t.Fatalf("Destroy() error = %v", err)
		}
		if err := m.Destroy(ctx, "tank/a"); err != nil {
			t.Errorf("second Destroy() error = %v, want nil", err)
		}
		if m.Exists("tank/a") {
			t.Error("volume still exists")
		}
	})

	t.Run("rename keeps properties", func(t *testing.T) {
		m := NewMemory()

		if err := m.Create(ctx, "tank/a"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := m.SetProperty(ctx, "tank/a", "readonly", "on"); err != nil {
			t.Fatalf("SetProperty() error = %v", err)
		}
		if err := m.Rename(ctx, "tank/a", "tank/b"); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		if m.Exists("tank/a") {
			t.Error("old name still exists")
		}
		ro, err := m.GetProperty(ctx, "tank/b", "readonly")
		if err != nil {
			t.Fatalf("GetProperty() error = %v", err)
		}
		if ro != "on" {
			t.Errorf("readonly = %q, want on", ro)
		}
	})

	t.Run("unknown volume", func(t *testing.T) {
		m := NewMemory()

		if _, err := m.GetProperty(ctx, "tank/ghost", "mountpoint"); err == nil {
			t.Error("GetProperty() = nil, want an error")
		}
		if err := m.SetProperty(ctx, "tank/ghost", "readonly", "on"); err == nil {
			t.Error("SetProperty() = nil, want an error")
		}
		if err := m.Rename(ctx, "tank/ghost", "tank/b"); err == nil {
			t.Error("Rename() = nil, want an error")
		}
	})

	t.Run("restrict records the owner", func(t *testing.T) {
		m := NewMemory()

		if err := m.Create(ctx, "tank/a"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := m.RestrictToOwner(ctx, "tank/a", "alice"); err != nil {
			t.Fatalf("RestrictToOwner() error = %v", err)
		}
		if got := m.Owner("tank/a"); got != "alice" {
			t.Errorf("Owner() = %q, want alice", got)
		}
	})

	t.Run("snapshot records the request", func(t *testing.T) {
		m := NewMemory()

		if err := m.Snapshot(ctx, "tank/scratch"); err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
		snaps := m.Snapshots()
		if len(snaps) != 1 || snaps[0] != "tank/scratch" {
			t.Errorf("Snapshots() = %v, want [tank/scratch]", snaps)
		}
	})
}
