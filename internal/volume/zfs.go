package volume

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"workspaces/internal/workspace"
)

// ZFS drives volumes by shelling out to the zfs CLI.
type ZFS struct {
	clock workspace.Clock
}

// NewZFS creates a ZFS volume manager. clock timestamps snapshots.
func NewZFS(clock workspace.Clock) *ZFS {
	return &ZFS{clock: clock}
}

// run executes a zfs subcommand, folding stderr into the error.
func run(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "zfs", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("zfs %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (z *ZFS) Create(ctx context.Context, volume string) error {
	return run(ctx, "create", "-p", volume)
}

func (z *ZFS) Destroy(ctx context.Context, volume string) error {
	// A missing volume counts as already destroyed so a sweep retrying a
	// previously failed pass does not get stuck.
	if err := exec.CommandContext(ctx, "zfs", "list", volume).Run(); err != nil {
		return nil
	}
	return run(ctx, "destroy", "-r", volume)
}

func (z *ZFS) Rename(ctx context.Context, oldVolume, newVolume string) error {
	return run(ctx, "rename", oldVolume, newVolume)
}

func (z *ZFS) SetProperty(ctx context.Context, volume, key, value string) error {
	return run(ctx, "set", key+"="+value, volume)
}

func (z *ZFS) GetProperty(ctx context.Context, volume, key string) (string, error) {
	// -Hp makes the output scriptable, -o value drops everything else.
	out, err := exec.CommandContext(ctx, "zfs", "get", "-Hp", "-o", "value", key, volume).Output()
	if err != nil {
		return "", fmt.Errorf("zfs get %s %s: %w", key, volume, err)
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

func (z *ZFS) Snapshot(ctx context.Context, volume string) error {
	stamp := z.clock.Now().UTC().Format("2006-01-02T15:04:05Z")
	return run(ctx, "snapshot", "-r", volume+"@"+stamp)
}

// RestrictToOwner resolves the volume's mountpoint and limits it to the
// owning user: mode 0750, owned by owner:owner.
func (z *ZFS) RestrictToOwner(ctx context.Context, volume, owner string) error {
	mountpoint, err := z.GetProperty(ctx, volume, "mountpoint")
	if err != nil {
		return err
	}

	u, err := user.Lookup(owner)
	if err != nil {
		return fmt.Errorf("looking up owner %s: %w", owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parsing uid of %s: %w", owner, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parsing gid of %s: %w", owner, err)
	}

	if err := os.Chmod(mountpoint, 0o750); err != nil {
		return fmt.Errorf("restricting mountpoint permissions: %w", err)
	}
	if err := os.Chown(mountpoint, uid, gid); err != nil {
		return fmt.Errorf("changing mountpoint owner: %w", err)
	}
	return nil
}

// Compile-time check that ZFS implements the VolumeManager interface.
var _ workspace.VolumeManager = (*ZFS)(nil)
