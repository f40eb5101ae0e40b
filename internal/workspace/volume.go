package workspace

import "context"

// VolumeManager drives the external storage resource backing workspaces.
// Implementations may shell out to the zfs CLI, talk to a daemon, or keep
// everything in memory; failures are returned, never thrown across this
// boundary.
type VolumeManager interface {
	// Create provisions a volume, creating missing parents.
	Create(ctx context.Context, volume string) error

	// Destroy removes a volume and everything below it. Destroying a volume
	// that no longer exists is not an error, so a failed sweep pass can
	// safely retry.
	Destroy(ctx context.Context, volume string) error

	// Rename moves a volume to a new name.
	Rename(ctx context.Context, oldVolume, newVolume string) error

	// SetProperty sets a volume property, e.g. readonly=on.
	SetProperty(ctx context.Context, volume, key, value string) error

	// GetProperty reads a volume property as its plain string value.
	GetProperty(ctx context.Context, volume, key string) (string, error)

	// Snapshot takes a recursive, timestamped snapshot of the volume.
	Snapshot(ctx context.Context, volume string) error

	// RestrictToOwner makes the volume's mountpoint accessible to the owning
	// user only (mode 0750, owned by owner:owner).
	RestrictToOwner(ctx context.Context, volume, owner string) error
}
