package testutil

import (
	"context"

	"workspaces/internal/volume"
)

// FakeVolumes wraps the in-memory volume manager with per-call error
// injection for exercising failure paths.
type FakeVolumes struct {
	*volume.Memory

	CreateErr      error
	DestroyErr     error
	RenameErr      error
	SetPropertyErr error
	GetPropertyErr error
	SnapshotErr    error
	RestrictErr    error
}

// NewFakeVolumes creates a FakeVolumes with no injected errors.
func NewFakeVolumes() *FakeVolumes {
	return &FakeVolumes{Memory: volume.NewMemory()}
}

func (f *FakeVolumes) Create(ctx context.Context, vol string) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	return f.Memory.Create(ctx, vol)
}

func (f *FakeVolumes) Destroy(ctx context.Context, vol string) error {
	if f.DestroyErr != nil {
		return f.DestroyErr
	}
	return f.Memory.Destroy(ctx, vol)
}

func (f *FakeVolumes) Rename(ctx context.Context, from, to string) error {
	if f.RenameErr != nil {
		return f.RenameErr
	}
	return f.Memory.Rename(ctx, from, to)
}

func (f *FakeVolumes) SetProperty(ctx context.Context, vol, key, value string) error {
	if f.SetPropertyErr != nil {
		return f.SetPropertyErr
	}
	return f.Memory.SetProperty(ctx, vol, key, value)
}

func (f *FakeVolumes) GetProperty(ctx context.Context, vol, key string) (string, error) {
	if f.GetPropertyErr != nil {
		return "", f.GetPropertyErr
	}
	return f.Memory.GetProperty(ctx, vol, key)
}

func (f *FakeVolumes) Snapshot(ctx context.Context, vol string) error {
	if f.SnapshotErr != nil {
		return f.SnapshotErr
	}
	return f.Memory.Snapshot(ctx, vol)
}

func (f *FakeVolumes) RestrictToOwner(ctx context.Context, vol, owner string) error {
	if f.RestrictErr != nil {
		return f.RestrictErr
	}
	return f.Memory.RestrictToOwner(ctx, vol, owner)
}
