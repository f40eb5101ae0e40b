package workspace

import "time"

// FilesystemPolicy describes one filesystem workspaces can be created in.
// Policies come from the configuration file and are read-only input to the
// lifecycle engine and the sweep.
type FilesystemPolicy struct {
	// Root is the ZFS filesystem acting as the parent for workspace volumes.
	Root string

	// MaxDuration bounds how far into the future an unprivileged create or
	// extend may push the expiration.
	MaxDuration time.Duration

	// Retention is the grace period after expiration before a workspace is
	// destroyed by the sweep.
	Retention time.Duration

	// NotifyOffsets are the points, relative to expiration, at which the
	// owner is reminded. Positive offsets fall before expiry, negative ones
	// after expiry but before deletion. Must be sorted ascending.
	NotifyOffsets []time.Duration

	// Snapshot requests a recursive snapshot of Root on every sweep.
	Snapshot bool

	// Disabled blocks unprivileged creation and extension.
	Disabled bool
}

// VolumeName returns the ZFS volume backing a workspace: <root>/<owner>/<name>.
func VolumeName(root, owner, name string) string {
	return root + "/" + owner + "/" + name
}
